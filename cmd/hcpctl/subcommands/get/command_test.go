package get_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/get"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/internal/commandline"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/internal/testenv"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/logger"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/try"
)

func TestGet(t *testing.T) {
	const identity = "HCP_1200:100307:3T:all"

	t.Run("it materializes inputs into the working directory", func(t *testing.T) {
		f := testenv.New(t, "")
		s := try.To(session.Parse(identity)).OrFatal(t)
		res := f.Layout().ResourcesOf(s)
		testenv.Write(t, filepath.Join(res, "T1w_MPR1_unproc", "100307_3T_T1w_MPR1.nii.gz"), "t1")
		testenv.Write(t, filepath.Join(res, "T2w_SPC1_unproc", "100307_3T_T2w_SPC1.nii.gz"), "t2")

		stdout := new(strings.Builder)
		cl := commandline.MockCommandline[get.Flag]{
			Fullname_: "hcpctl get",
			Flags_:    get.Flag{Pipeline: pipeline.StructuralPreprocessing, Quiet: true},
			Args_:     map[string][]string{common.ARG_SUBJECT: {identity}},
			Stdout_:   stdout,
			Stderr_:   new(strings.Builder),
		}
		if err := get.Task(context.Background(), logger.Null(), f.Env, cl, []any{}); err != nil {
			t.Fatal(err)
		}

		working := f.Env.Workspace(s, pipeline.StructuralPreprocessing).Working()
		for rel, content := range map[string]string{
			"100307_3T/unprocessed/T1w_MPR1/100307_3T_T1w_MPR1.nii.gz": "t1",
			"100307_3T/unprocessed/T2w_SPC1/100307_3T_T2w_SPC1.nii.gz": "t2",
		} {
			b, err := os.ReadFile(filepath.Join(working, rel))
			if err != nil {
				t.Errorf("%s: %v", rel, err)
				continue
			}
			if string(b) != content {
				t.Errorf("%s: (actual, expected) = (%q, %q)", rel, b, content)
			}
		}
		if !strings.Contains(stdout.String(), "created: 2,") {
			t.Errorf("stdout: %s", stdout)
		}
	})

	t.Run("a per-scan pipeline needs a scan", func(t *testing.T) {
		f := testenv.New(t, "")
		cl := commandline.MockCommandline[get.Flag]{
			Fullname_: "hcpctl get",
			Flags_:    get.Flag{Pipeline: pipeline.FunctionalPreprocessing, Quiet: true},
			Args_:     map[string][]string{common.ARG_SUBJECT: {identity}},
			Stdout_:   new(strings.Builder),
			Stderr_:   new(strings.Builder),
		}
		err := get.Task(context.Background(), logger.Null(), f.Env, cl, []any{})
		if !errors.Is(err, xe.ErrConfiguration) {
			t.Errorf("error: %v", err)
		}
	})
}
