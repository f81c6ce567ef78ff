package mark

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/pkg/status"
	"github.com/youta-t/flarc"
)

const (
	Queued = "queued"
	Done   = "done"
)

type Flag struct {
	Pipeline string `flag:"pipeline" alias:"p" metavar:"NAME" help:"pipeline name. Required."`
	Status   string `flag:"status" metavar:"queued|done" help:"queued puts the running marker; done removes it."`
	RunID    string `flag:"run-id" metavar:"ID" help:"run id written into the marker. Generated when omitted."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Put or remove the running marker of a pipeline for a session.",
		Flag{Status: Done},
		flarc.Args{
			{
				Name: common.ARG_SUBJECT, Required: true,
				Help: "session identity, project:subject:classifier:extra",
			},
		},
		common.NewTask(Task),
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

	m := status.New(env.Layout(), env.Config.Archive().BuildDir(), env.Connect, status.WithLogger(logger))
	switch flags.Status {
	case Queued:
		runID := flags.RunID
		if runID == "" {
			runID = uuid.NewString()
		}
		return m.Queued(ctx, s, def.Name, runID)
	case Done, "":
		return m.Done(ctx, s, def.Name)
	default:
		return fmt.Errorf("%w: --status should be %s or %s: %q", flarc.ErrUsage, Queued, Done, flags.Status)
	}
}
