// Package sequencer submits the job chain of a pipeline run to the batch queue.
//
// For a requested stage, every job stage up to it is submitted, each depending
// on the previous one with "afterok". A last job removing the running marker
// depends on the chain with "afterany", so the marker is cleared however the
// chain ends.
package sequencer

import (
	"context"
	"io"
	"log"

	"github.com/google/uuid"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/jobscript"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/queue"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/stage"
)

// MarkLabel labels the submission of the job removing the running marker.
const MarkLabel = "MARK_NO_LONGER_RUNNING"

type Renderer interface {
	Render(ws jobscript.Workspace, s session.Subject, def pipeline.Definition) (map[string]string, error)
}

type Marker interface {
	Queued(ctx context.Context, s session.Subject, pipeline string, runID string) error
}

type Request struct {
	Subject  session.Subject
	Pipeline string

	// Through is the last stage to be performed.
	Through stage.Stage

	// From is the first job stage to be submitted. Zero means GET_DATA.
	From stage.Stage

	// SkipMarker suppresses the running marker and its removal job.
	SkipMarker bool
}

type Submission struct {
	Label      string
	Script     string
	Handle     queue.Handle
	Dependency *queue.Dependency
}

type Result struct {
	RunID       string
	Workspace   jobscript.Workspace
	Submissions []Submission
}

type Sequencer struct {
	registry *pipeline.Registry
	renderer Renderer
	queue    queue.Queue
	marker   Marker
	buildDir string
	logger   *log.Logger
	runID    func() string
}

type Option func(*Sequencer) *Sequencer

func WithLogger(l *log.Logger) Option {
	return func(s *Sequencer) *Sequencer {
		if l != nil {
			s.logger = l
		}
		return s
	}
}

// WithRunID replaces the generator of run ids.
func WithRunID(f func() string) Option {
	return func(s *Sequencer) *Sequencer {
		s.runID = f
		return s
	}
}

func New(
	registry *pipeline.Registry,
	buildDir string,
	renderer Renderer,
	q queue.Queue,
	marker Marker,
	opts ...Option,
) *Sequencer {
	s := &Sequencer{
		registry: registry,
		renderer: renderer,
		queue:    q,
		marker:   marker,
		buildDir: buildDir,
		logger:   log.New(io.Discard, "", 0),
		runID:    uuid.NewString,
	}
	for _, o := range opts {
		s = o(s)
	}
	return s
}

// Submit prepares the job scripts and submits the chain.
//
// Any failure stops the chain there: nothing after the failed submission is submitted,
// and the submissions so far are returned with the error.
// Once the running marker is written, the job removing it is submitted even then,
// after the last accepted job or on its own when none was accepted.
func (sq *Sequencer) Submit(ctx context.Context, req Request) (Result, error) {
	from := req.From
	if from < stage.GetData {
		from = stage.GetData
	}
	if req.Through != stage.PrepareScripts && req.Through < from {
		return Result{}, xe.Configuration("stage %s is after %s", from, req.Through)
	}

	def, err := sq.registry.Lookup(req.Pipeline)
	if err != nil {
		return Result{}, err
	}
	if err := def.Validate(req.Subject); err != nil {
		return Result{}, err
	}

	result := Result{
		RunID:     sq.runID(),
		Workspace: jobscript.WorkspaceOf(sq.buildDir, req.Subject, def.Name),
	}
	sq.logger.Printf("run %s: %s for %s through %s", result.RunID, def.Name, req.Subject, req.Through)

	scripts, err := sq.renderer.Render(result.Workspace, req.Subject, def)
	if err != nil {
		return result, err
	}
	if req.Through == stage.PrepareScripts {
		for _, st := range stage.Jobs() {
			sq.logger.Printf("%s job not submitted for this run", st)
		}
		return result, nil
	}

	if !req.SkipMarker {
		if err := sq.marker.Queued(ctx, req.Subject, def.Name, result.RunID); err != nil {
			return result, err
		}
	}

	var dep *queue.Dependency
	submit := func(label, script string) error {
		h, err := sq.queue.Submit(ctx, script, dep)
		if err != nil {
			return err
		}
		sq.logger.Printf("%s job submitted as %s", label, h)
		result.Submissions = append(result.Submissions, Submission{
			Label: label, Script: script, Handle: h, Dependency: dep,
		})
		dep = &queue.Dependency{Mode: queue.AfterOK, On: h}
		return nil
	}

	for _, st := range stage.Jobs() {
		if st < from || req.Through < st {
			sq.logger.Printf("%s job not submitted for this run", st)
			continue
		}
		if err := submit(st.String(), scripts[st.Step()]); err != nil {
			if !req.SkipMarker {
				sq.logger.Printf("%s job failed to be submitted: %s", st, err)
				if dep != nil {
					dep.Mode = queue.AfterAny
				}
				if merr := submit(MarkLabel, scripts[jobscript.Mark]); merr != nil {
					sq.logger.Printf("%s job failed to be submitted: %s", MarkLabel, merr)
				}
			}
			return result, err
		}
	}

	if req.SkipMarker {
		return result, nil
	}
	if dep != nil {
		dep.Mode = queue.AfterAny
	}
	if err := submit(MarkLabel, scripts[jobscript.Mark]); err != nil {
		return result, err
	}
	return result, nil
}
