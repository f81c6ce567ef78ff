package filewatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/humanconnectome/hcp-pipelines/pkg/utils/filewatch"
)

func TestUntilModified(t *testing.T) {
	type when struct {
		modify func(t *testing.T, file string)
	}
	type then struct {
		canceled bool
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(file, []byte("archive: {}"), 0644); err != nil {
				t.Fatal(err)
			}

			ctx, cancel, err := filewatch.UntilModified(context.Background(), file)
			if err != nil {
				t.Fatal(err)
			}
			defer cancel()
			when.modify(t, file)

			select {
			case <-ctx.Done():
				if !then.canceled {
					t.Fatalf("canceled unexpectedly: %v", context.Cause(ctx))
				}
				if cause := context.Cause(ctx); !errors.Is(cause, filewatch.ErrModified) {
					t.Errorf("unexpected cause: %v", cause)
				}
			case <-time.After(500 * time.Millisecond):
				if then.canceled {
					t.Fatal("context is not canceled")
				}
			}
		}
	}

	t.Run("when the file is written, it should cancel the context", theory(
		when{modify: func(t *testing.T, file string) {
			if err := os.WriteFile(file, []byte("archive: {root: /x}"), 0644); err != nil {
				t.Fatal(err)
			}
		}},
		then{canceled: true},
	))
	t.Run("when the file is removed, it should cancel the context", theory(
		when{modify: func(t *testing.T, file string) {
			if err := os.Remove(file); err != nil {
				t.Fatal(err)
			}
		}},
		then{canceled: true},
	))
	t.Run("when the file is replaced by rename, it should cancel the context", theory(
		when{modify: func(t *testing.T, file string) {
			tmp := file + ".swp"
			if err := os.WriteFile(tmp, []byte("archive: {root: /y}"), 0644); err != nil {
				t.Fatal(err)
			}
			if err := os.Rename(tmp, file); err != nil {
				t.Fatal(err)
			}
		}},
		then{canceled: true},
	))
	t.Run("when a sibling file is written, it should keep the context alive", theory(
		when{modify: func(t *testing.T, file string) {
			sibling := filepath.Join(filepath.Dir(file), "other.yaml")
			if err := os.WriteFile(sibling, []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
		}},
		then{canceled: false},
	))
	t.Run("when nothing happens, it should keep the context alive", theory(
		when{modify: func(*testing.T, string) {}},
		then{canceled: false},
	))
}
