package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/pkg/completion"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/xnat"
	"github.com/youta-t/flarc"
)

// ErrIncomplete is returned when the output is not complete.
var ErrIncomplete = errors.New("incomplete")

type Flag struct {
	Pipeline     string `flag:"pipeline" alias:"p" metavar:"NAME" help:"pipeline name. Required."`
	Output       string `flag:"output" alias:"o" metavar:"path/to/report" help:"write the report to the file instead of stdout."`
	Upload       bool   `flag:"upload" help:"upload the report and the success marker into the output resource."`
	Marked       bool   `flag:"marked" help:"only tell whether a success marker newer than the last processing start exists."`
	ShortCircuit bool   `flag:"short-circuit" help:"stop at the first missing file."`
	Fieldmap     string `flag:"fieldmap" metavar:"SpinEcho|GE" help:"fieldmap kind selecting the default manifest."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Check whether the output of a pipeline is complete (CHECK_DATA).",
		Flag{},
		flarc.Args{
			{
				Name: common.ARG_SUBJECT, Required: true,
				Help: "session identity, project:subject:classifier:extra",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Check the output resource of the pipeline in the archive.

The output is complete when it exists, is newer than every prerequisite
resource, and has every file listed in the expected-file manifest.
The command exits with non-zero status when the output is incomplete.

With --upload, the report is uploaded into {session}/ProcessingInfo of the
output resource, and the success marker is uploaded (or removed) next to it.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	env common.Env,
	cl flarc.Commandline[Flag],
	_ []any,
) error {
	flags := cl.Flags()
	def, s, err := env.Target(flags.Pipeline, cl.Args()[common.ARG_SUBJECT][0])
	if err != nil {
		return err
	}
	checker := env.Checker()

	if flags.Marked {
		ok, err := checker.IsMarkedComplete(s, def.CompletionSpec())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cl.Stdout(), "%s: not marked complete\n", s)
			return fmt.Errorf("%w: %s of %s", ErrIncomplete, def.Name, s)
		}
		fmt.Fprintf(cl.Stdout(), "%s: marked complete\n", s)
		return nil
	}

	opts := []completion.Option{}
	if flags.ShortCircuit {
		opts = append(opts, completion.WithShortCircuit())
	}
	if flags.Fieldmap != "" {
		opts = append(opts, completion.WithFieldmap(flags.Fieldmap))
	}
	result, err := checker.Check(s, def.CompletionSpec(), opts...)
	if err != nil {
		return err
	}

	var out io.Writer = cl.Stdout()
	if flags.Output != "" {
		f, err := os.Create(flags.Output)
		if err != nil {
			return xe.Wrap(err)
		}
		defer f.Close()
		out = f
	}
	if err := result.WriteReport(out); err != nil {
		return xe.Wrap(err)
	}

	if flags.Upload {
		if err := upload(ctx, logger, env, s, def, result); err != nil {
			return err
		}
	}

	if !result.Complete {
		return fmt.Errorf("%w: %s of %s: %s", ErrIncomplete, def.Name, s, result.Reason)
	}
	return nil
}

// upload puts the report and the success marker into the output resource.
//
// When the check fails, the marker is removed from the resource instead.
func upload(
	ctx context.Context,
	logger *log.Logger,
	env common.Env,
	s session.Subject,
	def pipeline.Definition,
	result completion.Result,
) error {
	dir := env.Workspace(s, def.Name).Check()
	if err := os.MkdirAll(dir, 0775); err != nil {
		return xe.Wrap(err)
	}
	resource := def.Output.For(s)
	reportName := completion.ReportName(s, def.ProcessingName)
	markerName := completion.MarkerName(s, def.ProcessingName)

	report := filepath.Join(dir, reportName)
	if err := writeReport(report, result); err != nil {
		return err
	}
	marker := filepath.Join(dir, markerName)

	store, err := env.Connect(ctx, s)
	if err != nil {
		return err
	}

	if result.Complete {
		if err := os.WriteFile(marker, []byte(completion.SuccessSentence+"\n"), 0664); err != nil {
			return xe.Wrap(err)
		}
		logger.Printf("uploading %s", markerName)
		if err := store.Upload(
			ctx, resource, marker, def.Name,
			xnat.RemotePath(completion.InfoPath(s, markerName)),
		); err != nil {
			return err
		}
	} else {
		if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
			return xe.Wrap(err)
		}
		logger.Printf("removing %s", markerName)
		if err := store.RemoveFile(ctx, resource, completion.InfoPath(s, markerName)); err != nil {
			return err
		}
	}

	logger.Printf("uploading %s", reportName)
	return store.Upload(
		ctx, resource, report, def.Name,
		xnat.RemotePath(completion.InfoPath(s, reportName)),
	)
}

func writeReport(path string, result completion.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return xe.Wrap(err)
	}
	defer f.Close()
	if err := result.WriteReport(f); err != nil {
		return xe.Wrap(err)
	}
	return xe.Wrap(f.Close())
}
