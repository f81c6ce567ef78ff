package common

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"
)

func TestSyncProgress(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"a", "b", "c/d"} {
		p := filepath.Join(src, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	testee, err := StartSyncProgress(io.Discard, "testing:")
	if err != nil {
		t.Fatal(err)
	}

	ovl := overlay.New(append(
		[]overlay.Option{overlay.WithConcurrency(1)},
		testee.Options()...,
	)...)
	if err := ovl.AddTree(src, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	stats, err := ovl.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if total := testee.bar.Total(); total != 3 {
		t.Errorf("total before finish: %d", total)
	}
	if current := testee.bar.Current(); current != 3 {
		t.Errorf("current before finish: %d", current)
	}

	testee.Finish(stats)
	if total := testee.bar.Total(); total != 3 {
		t.Errorf("total after finish: %d", total)
	}
}
