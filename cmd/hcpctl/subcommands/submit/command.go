package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/jobscript"
	"github.com/humanconnectome/hcp-pipelines/pkg/queue"
	"github.com/humanconnectome/hcp-pipelines/pkg/sequencer"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/stage"
	"github.com/humanconnectome/hcp-pipelines/pkg/status"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Pipeline   string `flag:"pipeline" alias:"p" metavar:"NAME" help:"pipeline name. Required."`
	Through    string `flag:"through" alias:"t" metavar:"STAGE" help:"last stage to be performed: prepare, get, process, clean, put or check."`
	From       string `flag:"from" metavar:"STAGE" help:"first stage to be submitted. Default is get."`
	SkipMarker bool   `flag:"skip-marker" help:"do not put the running marker, nor submit the job removing it."`
	DryRun     bool   `flag:"dry-run" help:"write job scripts, but do not submit them nor touch the store."`
	List       string `flag:"list" alias:"l" metavar:"path/to/subjects.txt" help:"file listing session identities, one per line."`
}

const ARG_SUBJECT = common.ARG_SUBJECT

// Run is the report of one subject's submission.
type Run struct {
	Subject   string `json:"subject"`
	RunID     string `json:"runId"`
	Workspace string `json:"workspace"`
	Jobs      []Job  `json:"jobs"`
	Error     string `json:"error,omitempty"`
}

type Job struct {
	Label     string `json:"label"`
	Script    string `json:"script"`
	Handle    string `json:"handle"`
	DependsOn string `json:"dependsOn,omitempty"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Prepare job scripts of a pipeline and submit them to the batch queue.",
		Flag{Through: stage.CheckData.Step()},
		flarc.Args{
			{
				Name: ARG_SUBJECT, Repeatable: true,
				Help: "session identities, project:subject:classifier:extra",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Prepare job scripts of a pipeline for each session and submit them as a chain.

Each job starts after the previous one succeeded. The job removing the
running marker starts after the last one finished, successfully or not.

With --through prepare, scripts are written but nothing is submitted.
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
	if flags.Pipeline == "" {
		return fmt.Errorf("%w: --pipeline is required", flarc.ErrUsage)
	}
	through, err := stage.Parse(flags.Through)
	if err != nil {
		return fmt.Errorf("%w: --through: %w", flarc.ErrUsage, err)
	}
	from := stage.GetData
	if flags.From != "" {
		if from, err = stage.Parse(flags.From); err != nil {
			return fmt.Errorf("%w: --from: %w", flarc.ErrUsage, err)
		}
	}

	subjects, err := subjectsOf(cl.Args()[ARG_SUBJECT], flags.List)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return fmt.Errorf("%w: no subjects are given", flarc.ErrUsage)
	}

	q := env.Queue
	skipMarker := flags.SkipMarker
	if flags.DryRun {
		q = queue.NewDryRun(queue.WithLogger(logger))
		skipMarker = true
	}

	conf := env.Config
	renderOpts := []jobscript.Option{jobscript.WithDirectives(conf.Queue().Directives()...)}
	if env.ConfigPath != "" {
		abs, err := filepath.Abs(env.ConfigPath)
		if err != nil {
			return xe.Wrap(err)
		}
		renderOpts = append(renderOpts, jobscript.WithConfig(abs))
	}
	sq := sequencer.New(
		conf.Registry(),
		conf.Archive().BuildDir(),
		jobscript.New(conf.Hcpctl(), q.Directive(), renderOpts...),
		q,
		status.New(env.Layout(), conf.Archive().BuildDir(), env.Connect, status.WithLogger(logger)),
		sequencer.WithLogger(logger),
	)

	runs := make([]Run, 0, len(subjects))
	var errs []error
	for _, s := range subjects {
		result, err := sq.Submit(ctx, sequencer.Request{
			Subject:    s,
			Pipeline:   flags.Pipeline,
			Through:    through,
			From:       from,
			SkipMarker: skipMarker,
		})
		run := Run{
			Subject:   s.String(),
			RunID:     result.RunID,
			Workspace: result.Workspace.Root(),
			Jobs:      make([]Job, 0, len(result.Submissions)),
		}
		for _, sub := range result.Submissions {
			run.Jobs = append(run.Jobs, Job{
				Label:     sub.Label,
				Script:    sub.Script,
				Handle:    string(sub.Handle),
				DependsOn: sub.Dependency.String(),
			})
		}
		if err != nil {
			logger.Printf("[ERROR] %s: %s", s, err)
			run.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
		}
		runs = append(runs, run)
	}

	buf, err := json.MarshalIndent(runs, "", "    ")
	if err != nil {
		return err
	}
	if _, err := cl.Stdout().Write(append(buf, '\n')); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func subjectsOf(args []string, list string) ([]session.Subject, error) {
	subjects := []session.Subject{}
	if list != "" {
		f, err := os.Open(list)
		if err != nil {
			return nil, xe.Configuration("cannot read subject list: %s", err)
		}
		defer f.Close()
		listed, err := session.ReadList(f)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, listed...)
	}
	for _, a := range args {
		s, err := session.Parse(a)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}
