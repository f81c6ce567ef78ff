package clean

import (
	"context"
	"io"
	"log"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/pkg/cleandata"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Pipeline string `flag:"pipeline" alias:"p" metavar:"NAME" help:"pipeline name. Required."`
	Quiet    bool   `flag:"quiet" alias:"q" help:"do not show progress."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Collect the new outputs of processing into the clean directory (CLEAN_DATA).",
		Flag{},
		flarc.Args{
			{
				Name: common.ARG_SUBJECT, Required: true,
				Help: "session identity, project:subject:classifier:extra",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Collect files made or modified by processing into the clean directory.

Files older than the start-time marker touched by the process job are left
out, as are log files of the queue and store catalogs.
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
	ws := env.Workspace(s, def.Name)

	progressOut := cl.Stderr()
	if flags.Quiet {
		progressOut = io.Discard
	}
	progress, err := common.StartSyncProgress(progressOut, "cleaning:")
	if err != nil {
		return err
	}

	c := cleandata.New(
		cleandata.WithLogger(logger),
		cleandata.WithOverlay(env.OverlayOptions(logger, progress.Options()...)...),
	)
	logger.Printf("cleaning %s into %s", ws.Working(), ws.Clean())
	stats, err := c.Clean(ctx, ws.Working(), ws.Clean(), s, def.ProcessingName)
	progress.Finish(stats)
	if err != nil {
		return err
	}
	return common.PrintStats(cl.Stdout(), stats)
}
