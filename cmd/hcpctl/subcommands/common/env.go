package common

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/completion"
	"github.com/humanconnectome/hcp-pipelines/pkg/configs"
	"github.com/humanconnectome/hcp-pipelines/pkg/jobscript"
	"github.com/humanconnectome/hcp-pipelines/pkg/manifest"
	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/queue"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/xnat"
	"github.com/youta-t/flarc"
)

// Env is what subcommands take from the outside: configuration and the
// clients of external systems.
type Env struct {
	// ConfigPath is the path of the loaded configuration file.
	ConfigPath string

	Config *configs.Config

	// Connect opens the remote data store of a session.
	Connect xnat.Connector

	// Queue is the batch queue of the configured kind.
	Queue queue.Queue
}

// NewEnv builds an Env on the configuration.
//
// Store credentials are read at the first connection, so that commands
// not touching the store work without them.
func NewEnv(path string, conf *configs.Config, logger *log.Logger) (Env, error) {
	q, err := queue.New(conf.Queue().Kind(), queue.WithLogger(logger))
	if err != nil {
		return Env{}, err
	}

	sc := conf.Store()
	var once sync.Once
	var connect xnat.Connector
	var credErr error
	lazy := func(ctx context.Context, s session.Subject) (xnat.Store, error) {
		once.Do(func() {
			creds, err := xnat.LoadCredentials(sc.CredentialsFile())
			if err != nil {
				credErr = err
				return
			}
			connect = xnat.ConnectorOf(
				xnat.Config{
					Servers:           sc.Servers(),
					Protocol:          sc.Protocol(),
					Credentials:       creds,
					SelectionRounds:   sc.SelectionRounds(),
					SelectionInterval: sc.SelectionInterval(),
				},
				xnat.WithLogger(logger),
			)
		})
		if credErr != nil {
			return nil, credErr
		}
		return connect(ctx, s)
	}

	return Env{ConfigPath: path, Config: conf, Connect: lazy, Queue: q}, nil
}

func (e Env) Layout() archive.Layout {
	return archive.NewLayout(e.Config.Archive().Root())
}

func (e Env) Catalog() *archive.Catalog {
	return archive.NewCatalog(e.Layout())
}

func (e Env) Checker() *completion.Checker {
	return completion.New(e.Catalog(), manifest.NewLocator(e.Config.Manifests().SearchPaths()...))
}

// OverlayOptions are the configured overlay options, followed by extra.
func (e Env) OverlayOptions(logger *log.Logger, extra ...overlay.Option) []overlay.Option {
	o := e.Config.Overlay()
	return append(
		[]overlay.Option{
			overlay.WithStrategy(o.Strategy()),
			overlay.WithConcurrency(o.Concurrency()),
			overlay.WithLogger(logger),
		},
		extra...,
	)
}

func (e Env) Workspace(s session.Subject, pipeline string) jobscript.Workspace {
	return jobscript.WorkspaceOf(e.Config.Archive().BuildDir(), s, pipeline)
}

// Target resolves the pipeline and the session identity of a work command.
//
// A missing pipeline name is a usage error.
func (e Env) Target(pipelineName string, identity string) (pipeline.Definition, session.Subject, error) {
	if pipelineName == "" {
		return pipeline.Definition{}, session.Subject{}, fmt.Errorf("%w: --pipeline is required", flarc.ErrUsage)
	}
	s, err := session.Parse(identity)
	if err != nil {
		return pipeline.Definition{}, session.Subject{}, err
	}
	def, err := e.Config.Registry().Lookup(pipelineName)
	if err != nil {
		return pipeline.Definition{}, session.Subject{}, err
	}
	if err := def.Validate(s); err != nil {
		return pipeline.Definition{}, session.Subject{}, err
	}
	return def, s, nil
}
