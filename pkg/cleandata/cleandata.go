// Package cleandata assembles the output tree of a processing run, ready to be uploaded.
//
// The clean tree is made of the processing output files written (or updated)
// during the run, and the run's logs and settings under ProcessingInfo.
package cleandata

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/humanconnectome/hcp-pipelines/pkg/completion"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

// StartTimeFile is the start-time marker in a working directory.
// PROCESS_DATA touches it before processing.
func StartTimeFile(working string, s session.Subject, processingName string) string {
	return filepath.Join(
		working, s.Session(), completion.ProcessingInfo,
		completion.StartTimeName(s, processingName),
	)
}

// OutputDir is where processing writes its output in a working directory.
func OutputDir(working string, s session.Subject) string {
	return filepath.Join(working, s.Session(), "sessions", s.Session(), "hcp", s.Session())
}

type Cleaner struct {
	logger   *log.Logger
	overlays []overlay.Option
}

type Option func(*Cleaner) *Cleaner

func WithLogger(l *log.Logger) Option {
	return func(c *Cleaner) *Cleaner {
		if l != nil {
			c.logger = l
		}
		return c
	}
}

func WithOverlay(opts ...overlay.Option) Option {
	return func(c *Cleaner) *Cleaner {
		c.overlays = append(c.overlays, opts...)
		return c
	}
}

func New(opts ...Option) *Cleaner {
	c := &Cleaner{logger: log.New(io.Discard, "", 0)}
	for _, o := range opts {
		c = o(c)
	}
	return c
}

// Clean builds `{clean}/{session}` from the working directory.
//
// # Args
//
// - working: working directory of the run
//
// - clean: destination. The session directory is made in it.
//
// - s: subject
//
// - processingName: names the start-time marker
func (c *Cleaner) Clean(ctx context.Context, working, clean string, s session.Subject, processingName string) (overlay.Stats, error) {
	working, err := filepath.Abs(working)
	if err != nil {
		return overlay.Stats{}, xe.Wrap(err)
	}
	clean, err = filepath.Abs(clean)
	if err != nil {
		return overlay.Stats{}, xe.Wrap(err)
	}

	output := OutputDir(working, s)
	if _, err := os.Stat(output); err != nil {
		return overlay.Stats{}, xe.WrapWithNote("processing output does not exist", err)
	}
	startTimeFile := StartTimeFile(working, s, processingName)
	st, err := os.Stat(startTimeFile)
	if err != nil {
		return overlay.Stats{}, xe.WrapWithNote("start-time marker does not exist", err)
	}

	ovl := overlay.New(append([]overlay.Option{overlay.WithLogger(c.logger)}, c.overlays...)...)
	if err := ovl.AddUnder(output, clean); err != nil {
		return overlay.Stats{}, xe.Wrap(err)
	}

	n := ovl.Remove(overlay.OlderThan(st.ModTime()))
	c.logger.Printf("dropped %d files older than %s", n, st.ModTime())

	sessionDir := filepath.Join(clean, s.Session())
	n = ovl.Remove(overlay.Below(filepath.Join(sessionDir, "logs", "comlogs")))
	c.logger.Printf("dropped %d comlogs. copies are in %s/processing/logs", n, completion.ProcessingInfo)

	info := filepath.Join(sessionDir, completion.ProcessingInfo)
	ws := filepath.Join(working, s.Session())
	for _, m := range []struct{ src, parent string }{
		{filepath.Join(ws, completion.ProcessingInfo), sessionDir},
		{filepath.Join(ws, "processing"), info},
		{filepath.Join(ws, "sessions", "specs"), info},
		{filepath.Join(ws, "info", "hcpls"), info},
		{filepath.Join(ws, "sessions", s.Session(), "session_hcp.txt"), filepath.Join(info, "processing")},
		{filepath.Join(ws, "sessions", s.Session(), "hcpls", "hcpls2nii.log"), filepath.Join(info, "processing")},
	} {
		if _, err := os.Stat(m.src); os.IsNotExist(err) {
			c.logger.Printf("%s does not exist. skipping", m.src)
			continue
		}
		if err := ovl.AddUnder(m.src, m.parent); err != nil {
			return overlay.Stats{}, xe.Wrap(err)
		}
	}

	n = ovl.Remove(overlay.NameHasSuffix("_catalog.xml"))
	c.logger.Printf("dropped %d catalog files", n)

	return ovl.Sync(ctx)
}
