// Package pipeline holds the registry of pipelines.
//
// Pipelines differ only in data: what they read, what they write, and which
// files must become real copies. Each one is a Definition.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/completion"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

var ErrUnknownPipeline = fmt.Errorf("%w: unknown pipeline", xe.ErrConfiguration)

// Source is a resource category fetched into a working directory.
type Source struct {
	Category archive.Category

	// PerScan restricts the fetch to the subject's scan (extra).
	PerScan bool
}

// ProjectSource is a project-level resource fetched into a working directory.
type ProjectSource struct {
	// Project to read from. Empty means the subject's project.
	Project  string
	Category archive.Category
}

type Definition struct {
	Name           string
	ProcessingName string

	// Output is the resource the pipeline produces.
	Output completion.ResourceName

	// Prerequisites are the resources the output must be newer than.
	Prerequisites []archive.Category

	// Sources are fetched for processing, oldest stage first.
	Sources        []Source
	ProjectSources []ProjectSource

	// ForceCopy are path globs, relative to the working directory,
	// of files that must be real copies because processing writes them.
	ForceCopy []string

	// Prune are path globs, relative to the working directory,
	// of fetched files that processing must not see.
	Prune []string

	// PerScan pipelines run once per scan and need the extra.
	PerScan bool

	// Manifest overrides the expected-file manifest name.
	Manifest string

	// ProcessCommand is the shell command line of PROCESS_DATA.
	ProcessCommand string
}

// CompletionSpec is the record the completion checker needs.
func (d Definition) CompletionSpec() completion.Spec {
	return completion.Spec{
		ProcessingName: d.ProcessingName,
		Output:         d.Output,
		Prerequisites:  d.Prerequisites,
		Manifest:       d.Manifest,
	}
}

// Validate the subject for this pipeline.
func (d Definition) Validate(s session.Subject) error {
	if d.PerScan && s.Extra == "" {
		return xe.Configuration("pipeline %s runs per scan, but %s has no scan", d.Name, s)
	}
	return nil
}

// Merge returns d updated with the non-zero fields of o.
func (d Definition) Merge(o Definition) Definition {
	if o.ProcessingName != "" {
		d.ProcessingName = o.ProcessingName
	}
	if o.Output != "" {
		d.Output = o.Output
	}
	if o.Prerequisites != nil {
		d.Prerequisites = o.Prerequisites
	}
	if o.Sources != nil {
		d.Sources = o.Sources
	}
	if o.ProjectSources != nil {
		d.ProjectSources = o.ProjectSources
	}
	if o.ForceCopy != nil {
		d.ForceCopy = o.ForceCopy
	}
	if o.Prune != nil {
		d.Prune = o.Prune
	}
	if o.PerScan {
		d.PerScan = true
	}
	if o.Manifest != "" {
		d.Manifest = o.Manifest
	}
	if o.ProcessCommand != "" {
		d.ProcessCommand = o.ProcessCommand
	}
	return d
}

// Registry is a lookup table of pipelines by name.
type Registry struct {
	defs map[string]Definition
}

func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: map[string]Definition{}}
	for _, d := range defs {
		r.Register(d)
	}
	return r
}

// Register adds d, or merges it into the registered one of the same name.
func (r *Registry) Register(d Definition) {
	if cur, ok := r.defs[d.Name]; ok {
		d = cur.Merge(d)
	}
	if d.ProcessingName == "" {
		d.ProcessingName = d.Name
	}
	r.defs[d.Name] = d
}

func (r *Registry) Lookup(name string) (Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPipeline, name, r.Names())
	}
	return d, nil
}

// Names of registered pipelines, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
