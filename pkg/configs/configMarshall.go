package configs

import (
	"fmt"
	"time"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/completion"
	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/queue"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type ConfigMarshall struct {
	Archive   *ArchiveConfigMarshall    `yaml:"archive"`
	Manifests *ManifestsConfigMarshall  `yaml:"manifests"`
	Store     *StoreConfigMarshall      `yaml:"store"`
	Queue     *QueueConfigMarshall      `yaml:"queue,omitempty"`
	Overlay   *OverlayConfigMarshall    `yaml:"overlay,omitempty"`
	Hcpctl    string                    `yaml:"hcpctl,omitempty"`
	Pipelines []*PipelineConfigMarshall `yaml:"pipelines,omitempty"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	hcpctl := c.Hcpctl
	if hcpctl == "" {
		hcpctl = "hcpctl"
	}
	q := c.Queue
	if q == nil {
		q = &QueueConfigMarshall{}
	}
	o := c.Overlay
	if o == nil {
		o = &OverlayConfigMarshall{}
	}

	pipelines := make([]pipeline.Definition, 0, len(c.Pipelines))
	for i, p := range c.Pipelines {
		pipelines = append(pipelines, p.trySeal(fmt.Sprintf("%s.pipelines[%d]", path, i)))
	}

	return &Config{
		archive:   nonnil(c.Archive, path+".archive").trySeal(path + ".archive"),
		manifests: nonnil(c.Manifests, path+".manifests").trySeal(path + ".manifests"),
		store:     nonnil(c.Store, path+".store").trySeal(path + ".store"),
		queue:     q.trySeal(path + ".queue"),
		overlay:   o.trySeal(path + ".overlay"),
		hcpctl:    hcpctl,
		pipelines: pipelines,
	}
}

type ArchiveConfigMarshall struct {
	Root     string `yaml:"root"`
	BuildDir string `yaml:"buildDir"`
}

func (a *ArchiveConfigMarshall) trySeal(path string) *ArchiveConfig {
	return &ArchiveConfig{
		root:     required(a.Root, path+".root"),
		buildDir: required(a.BuildDir, path+".buildDir"),
	}
}

type ManifestsConfigMarshall struct {
	SearchPaths []string `yaml:"searchPaths"`
}

func (m *ManifestsConfigMarshall) trySeal(path string) *ManifestsConfig {
	return &ManifestsConfig{
		searchPaths: nonempty(m.SearchPaths, path+".searchPaths"),
	}
}

type StoreConfigMarshall struct {
	Servers           []string `yaml:"servers"`
	CredentialsFile   string   `yaml:"credentialsFile"`
	Protocol          string   `yaml:"protocol,omitempty"`
	SelectionRounds   int      `yaml:"selectionRounds,omitempty"`
	SelectionInterval string   `yaml:"selectionInterval,omitempty"`
}

func (s *StoreConfigMarshall) trySeal(path string) *StoreConfig {
	protocol := s.Protocol
	if protocol == "" {
		protocol = "https"
	}
	if protocol != "http" && protocol != "https" {
		panic(fmt.Sprintf("%s.protocol should be http or https: %q", path, protocol))
	}

	rounds := s.SelectionRounds
	if rounds == 0 {
		rounds = 60
	}
	if rounds < 0 {
		panic(fmt.Sprintf("%s.selectionRounds should be positive: %d", path, rounds))
	}

	interval := time.Minute
	if s.SelectionInterval != "" {
		d, err := time.ParseDuration(s.SelectionInterval)
		if err != nil {
			panic(fmt.Sprintf("%s.selectionInterval can not be parsed: %s", path, err))
		}
		interval = d
	}

	return &StoreConfig{
		servers:           nonempty(s.Servers, path+".servers"),
		credentialsFile:   required(s.CredentialsFile, path+".credentialsFile"),
		protocol:          protocol,
		selectionRounds:   rounds,
		selectionInterval: interval,
	}
}

type QueueConfigMarshall struct {
	Kind       string   `yaml:"kind,omitempty"`
	Directives []string `yaml:"directives,omitempty"`
}

func (q *QueueConfigMarshall) trySeal(path string) *QueueConfig {
	kind := queue.Kind(q.Kind)
	switch kind {
	case "":
		kind = queue.KindSlurm
	case queue.KindSlurm, queue.KindPBS, queue.KindDryRun:
	default:
		panic(fmt.Sprintf("%s.kind should be one of slurm, pbs or dryrun: %q", path, q.Kind))
	}
	return &QueueConfig{kind: kind, directives: q.Directives}
}

type OverlayConfigMarshall struct {
	Strategy    string `yaml:"strategy,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
}

func (o *OverlayConfigMarshall) trySeal(path string) *OverlayConfig {
	strategy := overlay.Symlink
	if o.Strategy != "" {
		s, err := overlay.ParseStrategy(o.Strategy)
		if err != nil {
			panic(fmt.Sprintf("%s.strategy: %s", path, err))
		}
		strategy = s
	}
	concurrency := o.Concurrency
	if concurrency == 0 {
		concurrency = 8
	}
	if concurrency < 0 {
		panic(fmt.Sprintf("%s.concurrency should be positive: %d", path, concurrency))
	}
	return &OverlayConfig{strategy: strategy, concurrency: concurrency}
}

type SourceMarshall struct {
	Category string `yaml:"category"`
	PerScan  bool   `yaml:"perScan,omitempty"`
}

type ProjectSourceMarshall struct {
	Project  string `yaml:"project,omitempty"`
	Category string `yaml:"category"`
}

// PipelineConfigMarshall overrides (or adds) a pipeline by name.
//
// Fields left empty keep the built-in values.
type PipelineConfigMarshall struct {
	Name           string                  `yaml:"name"`
	ProcessingName string                  `yaml:"processingName,omitempty"`
	Output         string                  `yaml:"output,omitempty"`
	Prerequisites  []string                `yaml:"prerequisites,omitempty"`
	Sources        []SourceMarshall        `yaml:"sources,omitempty"`
	ProjectSources []ProjectSourceMarshall `yaml:"projectSources,omitempty"`
	ForceCopy      []string                `yaml:"forceCopy,omitempty"`
	Prune          []string                `yaml:"prune,omitempty"`
	PerScan        bool                    `yaml:"perScan,omitempty"`
	Manifest       string                  `yaml:"manifest,omitempty"`
	ProcessCommand string                  `yaml:"processCommand,omitempty"`
}

func (p *PipelineConfigMarshall) trySeal(path string) pipeline.Definition {
	category := func(name string, path string) archive.Category {
		c, err := archive.ParseCategory(required(name, path))
		if err != nil {
			panic(fmt.Sprintf("%s: %s", path, err))
		}
		return c
	}

	d := pipeline.Definition{
		Name:           required(p.Name, path+".name"),
		ProcessingName: p.ProcessingName,
		Output:         completion.ResourceName(p.Output),
		ForceCopy:      p.ForceCopy,
		Prune:          p.Prune,
		PerScan:        p.PerScan,
		Manifest:       p.Manifest,
		ProcessCommand: p.ProcessCommand,
	}
	if p.Prerequisites != nil {
		d.Prerequisites = []archive.Category{}
		for i, name := range p.Prerequisites {
			d.Prerequisites = append(d.Prerequisites, category(name, fmt.Sprintf("%s.prerequisites[%d]", path, i)))
		}
	}
	if p.Sources != nil {
		d.Sources = []pipeline.Source{}
		for i, s := range p.Sources {
			d.Sources = append(d.Sources, pipeline.Source{
				Category: category(s.Category, fmt.Sprintf("%s.sources[%d].category", path, i)),
				PerScan:  s.PerScan,
			})
		}
	}
	if p.ProjectSources != nil {
		d.ProjectSources = []pipeline.ProjectSource{}
		for i, s := range p.ProjectSources {
			d.ProjectSources = append(d.ProjectSources, pipeline.ProjectSource{
				Project:  s.Project,
				Category: category(s.Category, fmt.Sprintf("%s.projectSources[%d].category", path, i)),
			})
		}
	}
	for _, g := range append(append([]string{}, p.ForceCopy...), p.Prune...) {
		if err := overlay.ValidatePattern(g); err != nil {
			panic(fmt.Sprintf("%s: glob %q: %s", path, g, err))
		}
	}
	return d
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func nonempty[T any](v []T, path string) []T {
	if len(v) == 0 {
		panic(path + " is required")
	}
	return v
}
