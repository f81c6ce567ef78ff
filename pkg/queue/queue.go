// Package queue submits job scripts to an external batch queue.
package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

// Handle is the queue's job id.
type Handle string

type Mode int

const (
	// AfterOK starts the job only when the dependency succeeded.
	AfterOK Mode = iota
	// AfterAny starts the job when the dependency finished, successfully or not.
	AfterAny
)

func (m Mode) String() string {
	switch m {
	case AfterOK:
		return "afterok"
	case AfterAny:
		return "afterany"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

type Dependency struct {
	Mode Mode
	On   Handle
}

func (d *Dependency) String() string {
	if d == nil {
		return ""
	}
	return d.Mode.String() + ":" + string(d.On)
}

type Queue interface {
	// Submit enqueues the script.
	//
	// # Args
	//
	// - context.Context
	//
	// - script: path to the job script
	//
	// - dep: the job waits for this. nil for no dependency.
	//
	// # Returns
	//
	// - Handle: job id of the submitted job
	//
	// - error: ErrExternalCall wrapped when the queue rejects the job
	Submit(ctx context.Context, script string, dep *Dependency) (Handle, error)

	// Directive is the prefix of in-script directive lines, like "#SBATCH".
	Directive() string
}

// Runner runs a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands as child processes.
//
// A non-zero exit is an error carrying stderr.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type Option func(*config) *config

type config struct {
	runner Runner
	logger *log.Logger
}

func WithRunner(r Runner) Option {
	return func(c *config) *config {
		c.runner = r
		return c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *config) *config {
		if l != nil {
			c.logger = l
		}
		return c
	}
}

func newConfig(opts []Option) *config {
	c := &config{runner: ExecRunner, logger: log.New(io.Discard, "", 0)}
	for _, o := range opts {
		c = o(c)
	}
	return c
}

type Kind string

const (
	KindSlurm  Kind = "slurm"
	KindPBS    Kind = "pbs"
	KindDryRun Kind = "dryrun"
)

// New returns the queue of the kind.
func New(kind Kind, opts ...Option) (Queue, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindSlurm, "":
		return NewSlurm(opts...), nil
	case KindPBS:
		return NewPBS(opts...), nil
	case KindDryRun:
		return NewDryRun(opts...), nil
	default:
		return nil, xe.Configuration("unknown queue kind: %q", kind)
	}
}

type commandQueue struct {
	*config
	name      string
	directive string

	// depArgs renders the dependency as command line arguments.
	depArgs func(*Dependency) []string

	// parse extracts the job id from stdout.
	parse func(stdout string) (Handle, error)
}

func (q *commandQueue) Directive() string {
	return q.directive
}

func (q *commandQueue) Submit(ctx context.Context, script string, dep *Dependency) (Handle, error) {
	args := []string{}
	if dep != nil {
		if dep.On == "" {
			return "", xe.Configuration("dependency without job id")
		}
		args = append(args, q.depArgs(dep)...)
	}
	args = append(args, script)

	q.logger.Printf("%s %s", q.name, strings.Join(args, " "))
	stdout, err := q.runner(ctx, q.name, args...)
	if err != nil {
		return "", xe.ExternalCall("submitting %s: %s", script, err)
	}
	h, err := q.parse(string(stdout))
	if err != nil {
		return "", err
	}
	q.logger.Printf("submitted %s as job %s", script, h)
	return h, nil
}

// NewSlurm returns a queue submitting with sbatch.
func NewSlurm(opts ...Option) Queue {
	return &commandQueue{
		config:    newConfig(opts),
		name:      "sbatch",
		directive: "#SBATCH",
		depArgs: func(d *Dependency) []string {
			return []string{"--dependency=" + d.String()}
		},
		parse: func(stdout string) (Handle, error) {
			// "Submitted batch job 1234"
			fields := strings.Fields(stdout)
			if len(fields) == 0 {
				return "", xe.ExternalCall("sbatch printed no job id")
			}
			return Handle(fields[len(fields)-1]), nil
		},
	}
}

// NewPBS returns a queue submitting with qsub.
func NewPBS(opts ...Option) Queue {
	return &commandQueue{
		config:    newConfig(opts),
		name:      "qsub",
		directive: "#PBS",
		depArgs: func(d *Dependency) []string {
			return []string{"-W", "depend=" + d.String()}
		},
		parse: func(stdout string) (Handle, error) {
			h := strings.TrimSpace(stdout)
			if h == "" {
				return "", xe.ExternalCall("qsub printed no job id")
			}
			return Handle(h), nil
		},
	}
}
