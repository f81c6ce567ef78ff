package sequencer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/humanconnectome/hcp-pipelines/pkg/cmp"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/jobscript"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/queue"
	"github.com/humanconnectome/hcp-pipelines/pkg/sequencer"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/stage"
)

var subject = session.Subject{Project: "HCP", SubjectID: "100307", Classifier: "3T"}

// events records the order of side effects across fakes.
type events []string

type fakeRenderer struct{ ev *events }

func (f fakeRenderer) Render(ws jobscript.Workspace, _ session.Subject, _ pipeline.Definition) (map[string]string, error) {
	*f.ev = append(*f.ev, "render")
	scripts := map[string]string{}
	for _, step := range jobscript.Steps() {
		scripts[step] = step + ".sh"
	}
	return scripts, nil
}

type fakeMarker struct {
	ev  *events
	err error
}

func (f fakeMarker) Queued(_ context.Context, s session.Subject, p string, runID string) error {
	*f.ev = append(*f.ev, fmt.Sprintf("queued %s %s %s", s, p, runID))
	return f.err
}

type fakeQueue struct {
	ev     *events
	failOn string
	n      int
}

func (*fakeQueue) Directive() string { return "#SBATCH" }

func (f *fakeQueue) Submit(_ context.Context, script string, dep *queue.Dependency) (queue.Handle, error) {
	if script == f.failOn {
		return "", xe.ExternalCall("sbatch: rejected")
	}
	f.n += 1
	*f.ev = append(*f.ev, fmt.Sprintf("submit %s %s", script, dep.String()))
	return queue.Handle(fmt.Sprintf("%d", f.n)), nil
}

func TestSubmit(t *testing.T) {
	type when struct {
		req       sequencer.Request
		queueFail string
		markerErr error
	}
	type then struct {
		events      []string
		submissions int
		err         error
		log         []string
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			ev := &events{}
			logbuf := new(bytes.Buffer)
			q := &fakeQueue{ev: ev, failOn: when.queueFail}
			sq := sequencer.New(
				pipeline.Builtin(), t.TempDir(),
				fakeRenderer{ev: ev}, q, fakeMarker{ev: ev, err: when.markerErr},
				sequencer.WithLogger(log.New(logbuf, "", 0)),
				sequencer.WithRunID(func() string { return "run-1" }),
			)

			result, err := sq.Submit(context.Background(), when.req)
			if !errors.Is(err, then.err) {
				t.Fatalf("error: (actual, expected) = (%v, %v)", err, then.err)
			}
			if !cmp.SliceEq([]string(*ev), then.events) {
				t.Errorf("events:\n  actual   = %q\n  expected = %q", *ev, then.events)
			}
			if len(result.Submissions) != then.submissions {
				t.Errorf("submissions: %+v", result.Submissions)
			}
			for _, l := range then.log {
				if !strings.Contains(logbuf.String(), l) {
					t.Errorf("log does not contain %q:\n%s", l, logbuf.String())
				}
			}
		}
	}

	structural := func(through stage.Stage) sequencer.Request {
		return sequencer.Request{Subject: subject, Pipeline: pipeline.StructuralPreprocessing, Through: through}
	}

	t.Run("PROCESS_DATA submits get, process and the marker removal", theory(
		when{req: structural(stage.ProcessData)},
		then{
			events: []string{
				"render",
				"queued HCP:100307:3T: StructuralPreprocessing run-1",
				"submit get.sh ",
				"submit process.sh afterok:1",
				"submit mark.sh afterany:2",
			},
			submissions: 3,
			log: []string{
				"CLEAN_DATA job not submitted for this run",
				"PUT_DATA job not submitted for this run",
				"CHECK_DATA job not submitted for this run",
			},
		},
	))
	t.Run("CHECK_DATA submits the whole chain", theory(
		when{req: structural(stage.CheckData)},
		then{
			events: []string{
				"render",
				"queued HCP:100307:3T: StructuralPreprocessing run-1",
				"submit get.sh ",
				"submit process.sh afterok:1",
				"submit clean.sh afterok:2",
				"submit put.sh afterok:3",
				"submit check.sh afterok:4",
				"submit mark.sh afterany:5",
			},
			submissions: 6,
		},
	))
	t.Run("From starts the chain later", theory(
		when{req: sequencer.Request{
			Subject: subject, Pipeline: pipeline.StructuralPreprocessing,
			From: stage.CleanData, Through: stage.PutData,
		}},
		then{
			events: []string{
				"render",
				"queued HCP:100307:3T: StructuralPreprocessing run-1",
				"submit clean.sh ",
				"submit put.sh afterok:1",
				"submit mark.sh afterany:2",
			},
			submissions: 3,
			log:         []string{"GET_DATA job not submitted for this run"},
		},
	))
	t.Run("SkipMarker submits no marker and no removal job", theory(
		when{req: sequencer.Request{
			Subject: subject, Pipeline: pipeline.StructuralPreprocessing,
			Through: stage.GetData, SkipMarker: true,
		}},
		then{
			events:      []string{"render", "submit get.sh "},
			submissions: 1,
		},
	))
	t.Run("PREPARE_SCRIPTS only renders", theory(
		when{req: structural(stage.PrepareScripts)},
		then{
			events: []string{"render"},
			log:    []string{"GET_DATA job not submitted for this run"},
		},
	))
	t.Run("a failed submission stops the chain and still clears the marker", theory(
		when{req: structural(stage.CheckData), queueFail: "process.sh"},
		then{
			events: []string{
				"render",
				"queued HCP:100307:3T: StructuralPreprocessing run-1",
				"submit get.sh ",
				"submit mark.sh afterany:1",
			},
			submissions: 2,
			err:         xe.ErrExternalCall,
			log:         []string{"PROCESS_DATA job failed to be submitted"},
		},
	))
	t.Run("a failed first submission clears the marker without dependency", theory(
		when{req: structural(stage.CheckData), queueFail: "get.sh"},
		then{
			events: []string{
				"render",
				"queued HCP:100307:3T: StructuralPreprocessing run-1",
				"submit mark.sh ",
			},
			submissions: 1,
			err:         xe.ErrExternalCall,
		},
	))
	t.Run("a failed submission with SkipMarker submits no removal job", theory(
		when{
			req: sequencer.Request{
				Subject: subject, Pipeline: pipeline.StructuralPreprocessing,
				Through: stage.CheckData, SkipMarker: true,
			},
			queueFail: "process.sh",
		},
		then{
			events:      []string{"render", "submit get.sh "},
			submissions: 1,
			err:         xe.ErrExternalCall,
		},
	))
	t.Run("a failed removal job keeps the error of the stage", theory(
		when{req: structural(stage.CheckData), queueFail: "mark.sh"},
		then{
			events: []string{
				"render",
				"queued HCP:100307:3T: StructuralPreprocessing run-1",
				"submit get.sh ",
				"submit process.sh afterok:1",
				"submit clean.sh afterok:2",
				"submit put.sh afterok:3",
				"submit check.sh afterok:4",
			},
			submissions: 5,
			err:         xe.ErrExternalCall,
		},
	))
	t.Run("a failed marker stops before submissions", theory(
		when{req: structural(stage.CheckData), markerErr: xe.ExternalCall("store is down")},
		then{
			events: []string{
				"render",
				"queued HCP:100307:3T: StructuralPreprocessing run-1",
			},
			err: xe.ErrExternalCall,
		},
	))
	t.Run("From after Through is a configuration error", theory(
		when{req: sequencer.Request{
			Subject: subject, Pipeline: pipeline.StructuralPreprocessing,
			From: stage.PutData, Through: stage.GetData,
		}},
		then{events: []string{}, err: xe.ErrConfiguration},
	))
	t.Run("unknown pipeline", theory(
		when{req: sequencer.Request{Subject: subject, Pipeline: "Nope", Through: stage.CheckData}},
		then{events: []string{}, err: pipeline.ErrUnknownPipeline},
	))
	t.Run("per-scan pipeline without scan", theory(
		when{req: sequencer.Request{Subject: subject, Pipeline: pipeline.FunctionalPreprocessing, Through: stage.CheckData}},
		then{events: []string{}, err: xe.ErrConfiguration},
	))
}

func TestSubmit_DefaultRunID(t *testing.T) {
	ev := &events{}
	sq := sequencer.New(
		pipeline.Builtin(), t.TempDir(),
		fakeRenderer{ev: ev}, &fakeQueue{ev: ev}, fakeMarker{ev: ev},
	)
	r1, err := sq.Submit(context.Background(), sequencer.Request{Subject: subject, Pipeline: pipeline.StructuralPreprocessing, Through: stage.GetData})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := sq.Submit(context.Background(), sequencer.Request{Subject: subject, Pipeline: pipeline.StructuralPreprocessing, Through: stage.GetData})
	if err != nil {
		t.Fatal(err)
	}
	if r1.RunID == "" || r1.RunID == r2.RunID {
		t.Errorf("run ids: %q, %q", r1.RunID, r2.RunID)
	}
}
