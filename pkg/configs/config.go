// Package configs loads the YAML configuration of hcpctl.
//
// Values are decoded into `XxxMarshall` types and sealed into immutable `Xxx`
// types with defaults applied. Use Load or Unmarshal to get a *Config.
package configs

import (
	"time"

	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/queue"
)

// EnvConfigPath is the environment variable naming the default configuration file.
const EnvConfigPath = "HCP_PIPELINES_CONFIG"

type Config struct {
	archive   *ArchiveConfig
	manifests *ManifestsConfig
	store     *StoreConfig
	queue     *QueueConfig
	overlay   *OverlayConfig
	hcpctl    string
	pipelines []pipeline.Definition
}

func (c *Config) Archive() *ArchiveConfig     { return c.archive }
func (c *Config) Manifests() *ManifestsConfig { return c.manifests }
func (c *Config) Store() *StoreConfig         { return c.store }
func (c *Config) Queue() *QueueConfig         { return c.queue }
func (c *Config) Overlay() *OverlayConfig     { return c.overlay }

// Hcpctl is the command job scripts call back. default = "hcpctl"
func (c *Config) Hcpctl() string {
	return c.hcpctl
}

// Registry returns the built-in pipelines, overridden and extended by the configured ones.
func (c *Config) Registry() *pipeline.Registry {
	r := pipeline.Builtin()
	for _, d := range c.pipelines {
		r.Register(d)
	}
	return r
}

type ArchiveConfig struct {
	root     string
	buildDir string
}

// Root of the archive, like "/HCP/hcpdb/archive".
func (a *ArchiveConfig) Root() string {
	return a.root
}

// BuildDir is where workspaces and markers are staged.
func (a *ArchiveConfig) BuildDir() string {
	return a.buildDir
}

type ManifestsConfig struct {
	searchPaths []string
}

// SearchPaths are directories searched for expected-file manifests, in order.
func (m *ManifestsConfig) SearchPaths() []string {
	return m.searchPaths
}

type StoreConfig struct {
	servers           []string
	credentialsFile   string
	protocol          string
	selectionRounds   int
	selectionInterval time.Duration
}

func (s *StoreConfig) Servers() []string {
	return s.servers
}

func (s *StoreConfig) CredentialsFile() string {
	return s.credentialsFile
}

// Protocol for servers without scheme. default = "https"
func (s *StoreConfig) Protocol() string {
	return s.protocol
}

// SelectionRounds is how many times the server list is probed. default = 60
func (s *StoreConfig) SelectionRounds() int {
	return s.selectionRounds
}

// SelectionInterval is the wait between probing rounds. default = 1m
func (s *StoreConfig) SelectionInterval() time.Duration {
	return s.selectionInterval
}

type QueueConfig struct {
	kind       queue.Kind
	directives []string
}

// Kind of the batch queue. default = slurm
func (q *QueueConfig) Kind() queue.Kind {
	return q.kind
}

// Directives are put into each job script, without the directive prefix.
func (q *QueueConfig) Directives() []string {
	return q.directives
}

type OverlayConfig struct {
	strategy    overlay.Strategy
	concurrency int
}

// Strategy of materialization. default = symlink
func (o *OverlayConfig) Strategy() overlay.Strategy {
	return o.strategy
}

// Concurrency of overlay sync. default = 8
func (o *OverlayConfig) Concurrency() int {
	return o.concurrency
}
