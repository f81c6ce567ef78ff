package configs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/cmp"
	"github.com/humanconnectome/hcp-pipelines/pkg/configs"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/queue"
)

const minimal = `
archive:
  root: /HCP/hcpdb/archive
  buildDir: /HCP/hcpdb/build
manifests:
  searchPaths: [/pipeline_tools/HCPpipelinesRunUtils]
store:
  servers: [db-shadow1.example.org]
  credentialsFile: ~/.xnat_credentials
`

func TestUnmarshal(t *testing.T) {
	t.Run("it loads config from yaml: ", func(t *testing.T) {
		result, err := configs.Unmarshal([]byte(`
archive:
  root: /HCP/hcpdb/archive
  buildDir: /HCP/hcpdb/build
manifests:
  searchPaths:
    - /pipeline_tools/HCPpipelinesRunUtils
    - /pipeline_tools/xnat_pbs_jobs
store:
  servers: [db-shadow1.example.org, db-shadow2.example.org]
  credentialsFile: ~/.xnat_credentials
  protocol: http
  selectionRounds: 3
  selectionInterval: 10s
queue:
  kind: pbs
  directives: ["-l nodes=1:ppn=1", "-l walltime=4:00:00"]
overlay:
  strategy: hardlink
  concurrency: 4
hcpctl: /usr/local/bin/hcpctl
pipelines:
  - name: FunctionalPreprocessing
    processCommand: FunctionalPreprocessing.sh
  - name: AslProcessing
    output: mbPCASLhr_proc
    prerequisites: [structural-preproc, asl-unproc]
    sources:
      - category: structural-preproc
      - category: asl-unproc
    forceCopy: ["**/*.spec"]
    processCommand: AslProcessing.sh
`))
		if err != nil {
			t.Fatalf("failed to parse config.: %v", err)
		}

		t.Run(".archive", func(t *testing.T) {
			if actual := result.Archive().Root(); actual != "/HCP/hcpdb/archive" {
				t.Errorf("root: %s", actual)
			}
			if actual := result.Archive().BuildDir(); actual != "/HCP/hcpdb/build" {
				t.Errorf("buildDir: %s", actual)
			}
		})
		t.Run(".manifests.searchPaths", func(t *testing.T) {
			expected := []string{"/pipeline_tools/HCPpipelinesRunUtils", "/pipeline_tools/xnat_pbs_jobs"}
			if actual := result.Manifests().SearchPaths(); !cmp.SliceEq(actual, expected) {
				t.Errorf("mismatch. (actual, expected) = (%v, %v)", actual, expected)
			}
		})
		t.Run(".store", func(t *testing.T) {
			s := result.Store()
			if !cmp.SliceEq(s.Servers(), []string{"db-shadow1.example.org", "db-shadow2.example.org"}) {
				t.Errorf("servers: %v", s.Servers())
			}
			if s.CredentialsFile() != "~/.xnat_credentials" || s.Protocol() != "http" {
				t.Errorf("credentialsFile, protocol: %s, %s", s.CredentialsFile(), s.Protocol())
			}
			if s.SelectionRounds() != 3 || s.SelectionInterval() != 10*time.Second {
				t.Errorf("selection: %d, %s", s.SelectionRounds(), s.SelectionInterval())
			}
		})
		t.Run(".queue", func(t *testing.T) {
			if result.Queue().Kind() != queue.KindPBS {
				t.Errorf("kind: %s", result.Queue().Kind())
			}
			if !cmp.SliceEq(result.Queue().Directives(), []string{"-l nodes=1:ppn=1", "-l walltime=4:00:00"}) {
				t.Errorf("directives: %v", result.Queue().Directives())
			}
		})
		t.Run(".overlay", func(t *testing.T) {
			if result.Overlay().Strategy() != overlay.Hardlink || result.Overlay().Concurrency() != 4 {
				t.Errorf("overlay: %s, %d", result.Overlay().Strategy(), result.Overlay().Concurrency())
			}
		})
		t.Run(".hcpctl", func(t *testing.T) {
			if result.Hcpctl() != "/usr/local/bin/hcpctl" {
				t.Errorf("hcpctl: %s", result.Hcpctl())
			}
		})
		t.Run(".pipelines override a built-in pipeline", func(t *testing.T) {
			d, err := result.Registry().Lookup(pipeline.FunctionalPreprocessing)
			if err != nil {
				t.Fatal(err)
			}
			if d.ProcessCommand != "FunctionalPreprocessing.sh" {
				t.Errorf("process command: %s", d.ProcessCommand)
			}
			if d.Output != "{scan}_preproc" || !d.PerScan {
				t.Errorf("built-in values are lost: %+v", d)
			}
		})
		t.Run(".pipelines add a pipeline", func(t *testing.T) {
			d, err := result.Registry().Lookup("AslProcessing")
			if err != nil {
				t.Fatal(err)
			}
			if d.ProcessingName != "AslProcessing" || d.Output != "mbPCASLhr_proc" {
				t.Errorf("definition: %+v", d)
			}
			if !cmp.SliceEq(d.Prerequisites, []archive.Category{archive.StructuralPreproc, archive.ASLUnproc}) {
				t.Errorf("prerequisites: %v", d.Prerequisites)
			}
			if len(d.Sources) != 2 || d.Sources[1].Category != archive.ASLUnproc {
				t.Errorf("sources: %+v", d.Sources)
			}
		})
	})

	t.Run("defaults are applied", func(t *testing.T) {
		result, err := configs.Unmarshal([]byte(minimal))
		if err != nil {
			t.Fatal(err)
		}
		s := result.Store()
		if s.Protocol() != "https" || s.SelectionRounds() != 60 || s.SelectionInterval() != time.Minute {
			t.Errorf("store defaults: %s, %d, %s", s.Protocol(), s.SelectionRounds(), s.SelectionInterval())
		}
		if result.Queue().Kind() != queue.KindSlurm {
			t.Errorf("queue default: %s", result.Queue().Kind())
		}
		if result.Overlay().Strategy() != overlay.Symlink || result.Overlay().Concurrency() != 8 {
			t.Errorf("overlay defaults: %s, %d", result.Overlay().Strategy(), result.Overlay().Concurrency())
		}
		if result.Hcpctl() != "hcpctl" {
			t.Errorf("hcpctl default: %s", result.Hcpctl())
		}
	})

	for name, yml := range map[string]string{
		"missing archive": `
manifests: {searchPaths: [/m]}
store: {servers: [s], credentialsFile: c}
`,
		"missing archive.buildDir": `
archive: {root: /a}
manifests: {searchPaths: [/m]}
store: {servers: [s], credentialsFile: c}
`,
		"empty searchPaths": `
archive: {root: /a, buildDir: /b}
manifests: {searchPaths: []}
store: {servers: [s], credentialsFile: c}
`,
		"no servers": `
archive: {root: /a, buildDir: /b}
manifests: {searchPaths: [/m]}
store: {credentialsFile: c}
`,
		"bad interval": minimal + `  selectionInterval: soon
`,
		"unknown queue": minimal + `queue: {kind: lsf}
`,
		"unknown strategy": minimal + `overlay: {strategy: reflink}
`,
		"unknown category": minimal + `pipelines: [{name: X, prerequisites: [nope]}]
`,
		"bad glob": minimal + `pipelines: [{name: X, prune: ["[a-"]}]
`,
		"not yaml": `archive: [`,
		"empty":    ``,
	} {
		t.Run("misconfiguration: "+name, func(t *testing.T) {
			_, err := configs.Unmarshal([]byte(yml))
			if !errors.Is(err, xe.ErrConfiguration) {
				t.Errorf("error: %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(minimal), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := configs.Load(p); err != nil {
		t.Errorf("Load: %v", err)
	}
	if _, err := configs.Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, xe.ErrConfiguration) {
		t.Errorf("missing file: %v", err)
	}
}
