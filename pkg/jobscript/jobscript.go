// Package jobscript renders the job scripts of a pipeline run.
//
// Every script but "process" calls back into hcpctl with the subject and
// pipeline. "process" runs the pipeline's ProcessCommand in the working directory.
package jobscript

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/humanconnectome/hcp-pipelines/pkg/cleandata"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/stage"
)

//go:embed templates/*.sh.tmpl
var templates embed.FS

// Mark is the step of the job removing the running marker.
const Mark = "mark"

// Steps are the scripts rendered for a run, in submission order.
func Steps() []string {
	steps := []string{}
	for _, st := range stage.Jobs() {
		steps = append(steps, st.Step())
	}
	return append(steps, Mark)
}

// Mode of rendered scripts.
const Mode fs.FileMode = 0770

func shquote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var parsed = template.Must(
	template.New("").Funcs(template.FuncMap{"shquote": shquote}).ParseFS(templates, "templates/*.sh.tmpl"),
)

type Renderer struct {
	hcpctl     string
	config     string
	directive  string
	directives []string
}

type Option func(*Renderer) *Renderer

// WithConfig passes the configuration file to hcpctl in scripts.
func WithConfig(path string) Option {
	return func(r *Renderer) *Renderer {
		r.config = path
		return r
	}
}

// WithDirectives adds queue directive lines, without the directive prefix.
func WithDirectives(d ...string) Option {
	return func(r *Renderer) *Renderer {
		r.directives = append(r.directives, d...)
		return r
	}
}

// New returns a Renderer.
//
// # Args
//
// - hcpctl: command name or path of hcpctl, as seen from job nodes
//
// - directive: the queue's directive prefix, like "#SBATCH"
func New(hcpctl string, directive string, opts ...Option) *Renderer {
	r := &Renderer{hcpctl: hcpctl, directive: directive}
	if r.hcpctl == "" {
		r.hcpctl = "hcpctl"
	}
	for _, o := range opts {
		r = o(r)
	}
	return r
}

type data struct {
	Directive  string
	Directives []string
	Step       string
	Subject    string
	Pipeline   string

	Hcpctl  string
	Config  string
	Command string
	Args    []string

	Working        string
	StartTimeDir   string
	StartTimeFile  string
	ProcessCommand string

	JobNameDirective string
	OutputDirective  string
}

// Render writes the job scripts of the run into the workspace, replacing old ones.
//
// It returns the script path of each step.
func (r *Renderer) Render(ws Workspace, s session.Subject, def pipeline.Definition) (map[string]string, error) {
	if def.ProcessCommand == "" {
		return nil, xe.Configuration("pipeline %s has no process command", def.Name)
	}
	for _, dir := range []string{ws.Root(), ws.Logs()} {
		if err := os.MkdirAll(dir, 0775); err != nil {
			return nil, xe.Wrap(err)
		}
	}

	startTime := cleandata.StartTimeFile(ws.Working(), s, def.ProcessingName)
	base := data{
		Directive:     r.directive,
		Directives:    r.directives,
		Subject:       s.String(),
		Pipeline:      def.Name,
		Hcpctl:        r.hcpctl,
		Config:        r.config,
		Working:       ws.Working(),
		StartTimeDir:  filepath.Dir(startTime),
		StartTimeFile: startTime,
	}

	pc, err := r.processCommand(def, base)
	if err != nil {
		return nil, err
	}
	base.ProcessCommand = pc

	scripts := map[string]string{}
	for _, step := range Steps() {
		d := base
		d.Step = step
		d.JobNameDirective, d.OutputDirective = r.jobDirectives(ws, s, def, step)

		tpl := "hcpctl.sh.tmpl"
		switch step {
		case stage.ProcessData.Step():
			tpl = "process.sh.tmpl"
		case stage.CheckData.Step():
			d.Command = step
			d.Args = []string{"--upload"}
		case Mark:
			d.Command = "mark"
			d.Args = []string{"--status", "done"}
		default:
			d.Command = step
		}

		path := ws.Script(step)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, xe.Wrap(err)
		}
		if err := write(path, tpl, d); err != nil {
			return nil, err
		}
		scripts[step] = path
	}
	return scripts, nil
}

// processCommand renders def.ProcessCommand, which can refer fields of the script data
// like {{ .Working }}.
func (r *Renderer) processCommand(def pipeline.Definition, d data) (string, error) {
	t, err := template.New(def.Name).Funcs(template.FuncMap{"shquote": shquote}).Parse(def.ProcessCommand)
	if err != nil {
		return "", xe.Configuration("process command of %s: %s", def.Name, err)
	}
	sb := new(strings.Builder)
	if err := t.Execute(sb, d); err != nil {
		return "", xe.Configuration("process command of %s: %s", def.Name, err)
	}
	return sb.String(), nil
}

func (r *Renderer) jobDirectives(ws Workspace, s session.Subject, def pipeline.Definition, step string) (string, string) {
	name := fmt.Sprintf("%s.%s%s.%s", def.Name, s.Session(), s.ScanSuffix(), step)
	log := filepath.Join(ws.Logs(), name+".log")
	if r.directive == "#PBS" {
		return "-N " + name, "-j oe -o " + log
	}
	return "--job-name=" + name, "--output=" + log
}

func write(path string, tpl string, d data) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, Mode)
	if err != nil {
		return xe.Wrap(err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = xe.Wrap(cerr)
		}
	}()
	if err := parsed.ExecuteTemplate(f, tpl, d); err != nil {
		return xe.Wrap(err)
	}
	// umask may have dropped bits
	return xe.Wrap(f.Chmod(Mode))
}
