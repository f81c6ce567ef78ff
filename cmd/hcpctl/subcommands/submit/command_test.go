package submit_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/internal/commandline"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/internal/testenv"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/logger"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/submit"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/status"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func TestSubmit(t *testing.T) {
	type When struct {
		flag     submit.Flag
		subjects []string
		list     string
	}
	type Then struct {
		err      error
		sbatch   int
		markers  int
		runs     int
		jobs     int
		scripts  bool
		lastDeps string
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			f := testenv.New(t, "")
			flag := when.flag
			if when.list != "" {
				flag.List = testenv.Write(t, filepath.Join(t.TempDir(), "subjects.txt"), when.list)
			}

			stdout := new(strings.Builder)
			cl := commandline.MockCommandline[submit.Flag]{
				Fullname_: "hcpctl submit",
				Flags_:    flag,
				Args_:     map[string][]string{submit.ARG_SUBJECT: when.subjects},
				Stdout_:   stdout,
				Stderr_:   new(strings.Builder),
			}
			err := submit.Task(context.Background(), logger.Null(), f.Env, cl, []any{})
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Fatalf("error: (actual, expected) = (%v, %v)", err, then.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}

			if got := len(f.Queue.Calls); got != then.sbatch {
				t.Errorf("sbatch calls: %d: %v", got, f.Queue.Calls)
			}
			markers := 0
			for _, u := range f.Store.Calls.Upload {
				if u.Resource == status.Resource {
					markers += 1
				}
			}
			if markers != then.markers {
				t.Errorf("markers: %d", markers)
			}

			runs := []submit.Run{}
			try.To(0, json.Unmarshal([]byte(stdout.String()), &runs)).OrFatal(t)
			if len(runs) != then.runs {
				t.Fatalf("runs: %+v", runs)
			}
			for _, r := range runs {
				if len(r.Jobs) != then.jobs {
					t.Errorf("jobs of %s: %+v", r.Subject, r.Jobs)
				}
				if then.jobs != 0 && r.Jobs[len(r.Jobs)-1].DependsOn != then.lastDeps {
					t.Errorf("last job of %s: %+v", r.Subject, r.Jobs[len(r.Jobs)-1])
				}
				if r.Error != "" {
					t.Errorf("run of %s has error: %s", r.Subject, r.Error)
				}
				if then.scripts {
					for _, step := range []string{"get", "process", "clean", "put", "check", "mark"} {
						name := filepath.Base(r.Workspace) + "." + step + ".sh"
						if _, err := os.Stat(filepath.Join(r.Workspace, name)); err != nil {
							t.Errorf("script %s: %s", name, err)
						}
					}
				}
			}
		}
	}

	t.Run("it submits the whole chain with the marker removal", theory(
		When{
			flag:     submit.Flag{Pipeline: pipeline.StructuralPreprocessing, Through: "check"},
			subjects: []string{"HCP_1200:100307:3T:all"},
		},
		Then{sbatch: 6, markers: 1, runs: 1, jobs: 6, scripts: true, lastDeps: "afterany:1005"},
	))
	t.Run("dry-run submits nothing and puts no marker", theory(
		When{
			flag:     submit.Flag{Pipeline: pipeline.StructuralPreprocessing, Through: "check", DryRun: true},
			subjects: []string{"HCP_1200:100307:3T:all"},
		},
		Then{sbatch: 0, markers: 0, runs: 1, jobs: 5, scripts: true, lastDeps: "afterok:dryrun-4"},
	))
	t.Run("prepare only writes scripts", theory(
		When{
			flag:     submit.Flag{Pipeline: pipeline.StructuralPreprocessing, Through: "prepare"},
			subjects: []string{"HCP_1200:100307:3T:all"},
		},
		Then{sbatch: 0, markers: 0, runs: 1, jobs: 0, scripts: true},
	))
	t.Run("subjects from the list are followed by arguments", theory(
		When{
			flag:     submit.Flag{Pipeline: pipeline.StructuralPreprocessing, Through: "get", SkipMarker: true},
			list:     "# structural\nHCP_1200:100307:3T:all\n\nHCP_1200:100408:3T:all\n",
			subjects: []string{"HCP_1200:101006:3T:all"},
		},
		Then{sbatch: 3, markers: 0, runs: 3, jobs: 1},
	))
	t.Run("pipeline is required", theory(
		When{flag: submit.Flag{Through: "check"}, subjects: []string{"HCP_1200:100307:3T:all"}},
		Then{err: flarc.ErrUsage},
	))
	t.Run("subjects are required", theory(
		When{flag: submit.Flag{Pipeline: pipeline.StructuralPreprocessing, Through: "check"}},
		Then{err: flarc.ErrUsage},
	))
	t.Run("unknown stage is a usage error", theory(
		When{
			flag:     submit.Flag{Pipeline: pipeline.StructuralPreprocessing, Through: "bake"},
			subjects: []string{"HCP_1200:100307:3T:all"},
		},
		Then{err: flarc.ErrUsage},
	))
	t.Run("malformed subject is a configuration error", theory(
		When{
			flag:     submit.Flag{Pipeline: pipeline.StructuralPreprocessing, Through: "check"},
			subjects: []string{"HCP_1200:100307"},
		},
		Then{err: xe.ErrConfiguration},
	))
}

func TestSubmit_FailedSubjectsAreReported(t *testing.T) {
	f := testenv.New(t, strings.Join([]string{
		"  - name: FunctionalPreprocessing",
		`    processCommand: "GenericfMRIVolumeProcessingPipelineBatch.sh"`,
	}, "\n"))
	stdout := new(strings.Builder)
	cl := commandline.MockCommandline[submit.Flag]{
		Fullname_: "hcpctl submit",
		Flags_:    submit.Flag{Pipeline: pipeline.FunctionalPreprocessing, Through: "check"},
		Args_: map[string][]string{submit.ARG_SUBJECT: {
			"HCP_1200:100307:3T:all",
			"HCP_1200:100307:3T:rfMRI_REST1_RL",
		}},
		Stdout_: stdout,
		Stderr_: new(strings.Builder),
	}
	err := submit.Task(context.Background(), logger.Null(), f.Env, cl, []any{})
	if !errors.Is(err, xe.ErrConfiguration) {
		t.Fatalf("error: %v", err)
	}

	runs := []submit.Run{}
	try.To(0, json.Unmarshal([]byte(stdout.String()), &runs)).OrFatal(t)
	if len(runs) != 2 {
		t.Fatalf("runs: %+v", runs)
	}
	if runs[0].Error == "" || len(runs[0].Jobs) != 0 {
		t.Errorf("subject without scan: %+v", runs[0])
	}
	if runs[1].Error != "" || len(runs[1].Jobs) != 6 {
		t.Errorf("subject with scan: %+v", runs[1])
	}
}
