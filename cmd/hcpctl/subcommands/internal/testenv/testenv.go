// Package testenv builds a common.Env on temporary directories for subcommand tests.
package testenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/configs"
	"github.com/humanconnectome/hcp-pipelines/pkg/queue"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/try"
	"github.com/humanconnectome/hcp-pipelines/pkg/xnat/mocks"
)

type Fixture struct {
	Env common.Env

	ArchiveRoot string
	BuildDir    string
	Manifests   string

	Store *mocks.Store
	Queue *Runner
}

func (f Fixture) Layout() archive.Layout {
	return archive.NewLayout(f.ArchiveRoot)
}

// Runner fakes sbatch.
type Runner struct {
	mu    sync.Mutex
	Calls [][]string
}

func (r *Runner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, append([]string{name}, args...))
	return []byte(fmt.Sprintf("Submitted batch job %d\n", 1000+len(r.Calls))), nil
}

// New makes a fixture. extra is appended to the configuration YAML.
func New(t *testing.T, extra string) Fixture {
	t.Helper()
	root := t.TempDir()
	build := t.TempDir()
	manifests := t.TempDir()

	yml := strings.Join([]string{
		"archive:",
		"  root: " + root,
		"  buildDir: " + build,
		"manifests:",
		"  searchPaths: [" + manifests + "]",
		"store:",
		"  servers: [db.invalid]",
		"  credentialsFile: " + filepath.Join(root, "no-credentials"),
		"overlay:",
		"  strategy: copy",
		"pipelines:",
		"  - name: StructuralPreprocessing",
		`    processCommand: "PreFreeSurferPipelineBatch.sh --working-dir={{ .Working }}"`,
		extra,
	}, "\n")
	path := filepath.Join(t.TempDir(), "config.yaml")
	try.To(0, os.WriteFile(path, []byte(yml), 0644)).OrFatal(t)
	conf := try.To(configs.Load(path)).OrFatal(t)

	store := mocks.NewStore()
	runner := &Runner{}
	return Fixture{
		Env: common.Env{
			ConfigPath: path,
			Config:     conf,
			Connect:    store.Connector(),
			Queue:      queue.NewSlurm(queue.WithRunner(runner.Run)),
		},
		ArchiveRoot: root,
		BuildDir:    build,
		Manifests:   manifests,
		Store:       store,
		Queue:       runner,
	}
}

// Write a file, making parent directories.
func Write(t *testing.T, path string, content string) string {
	t.Helper()
	try.To(0, os.MkdirAll(filepath.Dir(path), 0755)).OrFatal(t)
	try.To(0, os.WriteFile(path, []byte(content), 0644)).OrFatal(t)
	return path
}
