package get

import (
	"context"
	"io"
	"log"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/pkg/fetch"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Pipeline         string `flag:"pipeline" alias:"p" metavar:"NAME" help:"pipeline name. Required."`
	RemoveNonSubdirs bool   `flag:"remove-non-subdirs" help:"remove files directly under the working directory after fetching."`
	Quiet            bool   `flag:"quiet" alias:"q" help:"do not show progress."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Materialize the input resources of a session into the working directory (GET_DATA).",
		Flag{},
		flarc.Args{
			{
				Name: common.ARG_SUBJECT, Required: true,
				Help: "session identity, project:subject:classifier:extra",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Materialize the input resources of a session into the working directory of the pipeline.

Resources are laid over each other: when two resources have a file at the same
path, the resource listed later in the pipeline's sources wins.
Files already in place are left as they are.
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
	progress, err := common.StartSyncProgress(progressOut, "fetching:")
	if err != nil {
		return err
	}

	f := fetch.New(
		env.Catalog(),
		fetch.WithLogger(logger),
		fetch.WithOverlay(env.OverlayOptions(
			logger,
			progress.Options()...,
		)...),
	)

	opts := []fetch.FetchOption{}
	if flags.RemoveNonSubdirs {
		opts = append(opts, fetch.PruneNonDirectories())
	}
	logger.Printf("fetching inputs of %s for %s into %s", def.Name, s, ws.Working())
	stats, err := f.Fetch(ctx, s, def, ws.Working(), opts...)
	progress.Finish(stats)
	if err != nil {
		return err
	}
	return common.PrintStats(cl.Stdout(), stats)
}
