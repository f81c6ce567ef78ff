package serve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/pkg/statusserver"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/filewatch"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Listen         string        `flag:"listen" metavar:"[HOST]:PORT" help:"address to listen on."`
	GracefulPeriod time.Duration `flag:"graceful-period" help:"time to wait requests in flight on shutdown."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Serve running markers and completion results over HTTP.",
		Flag{Listen: ":8080", GracefulPeriod: 10 * time.Second},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Serve a read-only HTTP view of the archive:

	GET /healthz
	GET /projects/{project}/sessions/{session}/running
	GET /projects/{project}/sessions/{session}/pipelines/{pipeline}/completion?scan={scan}

The server stops when the configuration file is modified.
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

	if env.ConfigPath != "" {
		wctx, cancel, err := filewatch.UntilModified(ctx, env.ConfigPath)
		if err != nil {
			return err
		}
		defer cancel()
		ctx = wctx
	}

	h := statusserver.NewHandlers(env.Layout(), env.Config.Registry(), env.Checker())
	svr, err := statusserver.Start(
		ctx, flags.Listen, h,
		statusserver.WithLogger(logger),
		statusserver.WithGracefulPeriod(flags.GracefulPeriod),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(cl.Stdout(), "listening on %s\n", svr.Addr)

	if err := <-svr.Stopped; err != nil {
		return err
	}
	if cause := context.Cause(ctx); errors.Is(cause, filewatch.ErrModified) {
		logger.Printf("stopped: %s", cause)
	}
	return nil
}
