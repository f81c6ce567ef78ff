package xnat

import (
	"context"

	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

// Connector opens a Store of the subject's session.
type Connector func(ctx context.Context, s session.Subject) (Store, error)

// ConnectorOf returns a Connector which calls Connect with cfg for each session.
func ConnectorOf(cfg Config, opts ...Option) Connector {
	return func(ctx context.Context, s session.Subject) (Store, error) {
		return Connect(ctx, cfg, s.Project, s.SubjectID, s.Session(), opts...)
	}
}
