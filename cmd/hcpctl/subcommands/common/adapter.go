package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/logger"
	"github.com/humanconnectome/hcp-pipelines/pkg/configs"
	"github.com/youta-t/flarc"
)

// Task is a subcommand body running on a loaded configuration.
type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	env Env,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask loads the configuration named by --config and runs task on it.
//
// CommonFlags is taken out of the params passed to task.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], params []any) error {
		flags, rest, ok := splitCommonFlags(params)
		if !ok {
			return errors.New("programming error: common flags not found")
		}
		if flags.Config == "" {
			return fmt.Errorf(
				"%w: --config (or envvar %s) is required", flarc.ErrUsage, configs.EnvConfigPath,
			)
		}

		l := logger.For(cl.Stderr(), cl.Fullname())
		conf, err := configs.Load(flags.Config)
		if err != nil {
			return err
		}
		env, err := NewEnv(flags.Config, conf, l)
		if err != nil {
			return err
		}
		return task(ctx, l, env, cl, rest)
	}
}

func splitCommonFlags(params []any) (CommonFlags, []any, bool) {
	var flags CommonFlags
	found := false
	rest := make([]any, 0, len(params))
	for _, p := range params {
		if f, ok := p.(CommonFlags); ok {
			flags, found = f, true
			continue
		}
		rest = append(rest, p)
	}
	return flags, rest, found
}
