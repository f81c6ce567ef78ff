// Package status maintains the running-status marker of a session:
// a file in the RunningStatus resource which tells the session has jobs in the queue.
package status

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/xnat"
)

// Resource holding running markers.
const Resource = "RunningStatus"

// Suffix of running marker files.
const Suffix = ".RUNNING"

// FileName is the marker file name, `{pipeline}.{session}{_scan}.RUNNING`.
func FileName(s session.Subject, pipeline string) string {
	return fmt.Sprintf("%s.%s%s%s", pipeline, s.Session(), s.ScanSuffix(), Suffix)
}

type Marker struct {
	layout   archive.Layout
	buildDir string
	connect  xnat.Connector
	logger   *log.Logger
}

type Option func(*Marker) *Marker

func WithLogger(l *log.Logger) Option {
	return func(m *Marker) *Marker {
		if l != nil {
			m.logger = l
		}
		return m
	}
}

// New returns a Marker.
//
// # Args
//
// - layout: archive layout, to see the markers already in the store
//
// - buildDir: markers are staged under this directory before upload
//
// - connect: opens the store of a session
func New(layout archive.Layout, buildDir string, connect xnat.Connector, opts ...Option) *Marker {
	m := &Marker{
		layout:   layout,
		buildDir: buildDir,
		connect:  connect,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, o := range opts {
		m = o(m)
	}
	return m
}

// Queued puts the running marker of the pipeline into the store.
//
// The marker records the run id.
func (m *Marker) Queued(ctx context.Context, s session.Subject, pipeline string, runID string) error {
	name := FileName(s, pipeline)
	staging := filepath.Join(
		m.buildDir, s.Project,
		fmt.Sprintf("%s.%s%s_RUNNING_STATUS", pipeline, s.Session(), s.ScanSuffix()),
	)
	if err := os.MkdirAll(staging, 0775); err != nil {
		return xe.Wrap(err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			m.logger.Printf("cannot remove %s: %s", staging, err)
		}
	}()

	content := fmt.Sprintf("Reason: queued\nRun: %s\n", runID)
	if err := os.WriteFile(filepath.Join(staging, name), []byte(content), 0664); err != nil {
		return xe.Wrap(err)
	}

	store, err := m.connect(ctx, s)
	if err != nil {
		return err
	}
	if err := store.Upload(ctx, Resource, staging, "queued"); err != nil {
		return err
	}
	m.logger.Printf("marked %s as queued (run %s)", s, runID)
	return nil
}

// Done removes the running marker of the pipeline from the store.
//
// It does nothing when the archive does not have the marker.
func (m *Marker) Done(ctx context.Context, s session.Subject, pipeline string) error {
	name := FileName(s, pipeline)
	existing := filepath.Join(m.layout.Resource(s, Resource), name)
	if _, err := os.Stat(existing); err != nil {
		if os.IsNotExist(err) {
			m.logger.Printf("%s is not marked as running", s)
			return nil
		}
		return xe.Wrap(err)
	}

	store, err := m.connect(ctx, s)
	if err != nil {
		return err
	}
	if err := store.RemoveFile(ctx, Resource, name); err != nil {
		return err
	}
	m.logger.Printf("removed running marker of %s", s)
	return nil
}

// Running lists marker files in the session's RunningStatus resource of the archive.
func Running(layout archive.Layout, project, sessionLabel string) ([]string, error) {
	dir := filepath.Join(layout.SessionResources(project, sessionLabel), Resource)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, xe.Wrap(err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Suffix {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
