package cleandata_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/humanconnectome/hcp-pipelines/pkg/cleandata"
	"github.com/humanconnectome/hcp-pipelines/pkg/cmp"
	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/try"
)

var subject = session.Subject{Project: "HCP", SubjectID: "100307", Classifier: "3T"}

func touch(t *testing.T, p string, mtime time.Time) {
	t.Helper()
	try.To(0, os.MkdirAll(filepath.Dir(p), 0755)).OrFatal(t)
	try.To(0, os.WriteFile(p, []byte(filepath.Base(p)), 0644)).OrFatal(t)
	try.To(0, os.Chtimes(p, mtime, mtime)).OrFatal(t)
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	files := []string{}
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	return files
}

func TestClean(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	before := started.Add(-time.Hour)
	after := started.Add(time.Hour)

	working := t.TempDir()
	ws := filepath.Join(working, "100307_3T")
	out := cleandata.OutputDir(working, subject)

	touch(t, cleandata.StartTimeFile(working, subject, "StructuralPreprocessing"), started)
	touch(t, filepath.Join(out, "T1w", "fetched.nii.gz"), before)
	touch(t, filepath.Join(out, "T1w", "made.nii.gz"), after)
	touch(t, filepath.Join(out, "logs", "comlogs", "run.log"), after)
	touch(t, filepath.Join(out, "MNINonLinear", "Structural_catalog.xml"), after)
	touch(t, filepath.Join(ws, "processing", "logs", "run.log"), after)
	touch(t, filepath.Join(ws, "sessions", "specs", "batch.txt"), after)
	touch(t, filepath.Join(ws, "sessions", "100307_3T", "session_hcp.txt"), before)

	clean := t.TempDir()
	c := cleandata.New(cleandata.WithOverlay(overlay.WithStrategy(overlay.Hardlink)))
	if _, err := c.Clean(context.Background(), working, clean, subject, "StructuralPreprocessing"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"100307_3T/ProcessingInfo/100307_3T.StructuralPreprocessing.starttime",
		"100307_3T/ProcessingInfo/processing/logs/run.log",
		"100307_3T/ProcessingInfo/processing/session_hcp.txt",
		"100307_3T/ProcessingInfo/specs/batch.txt",
		"100307_3T/T1w/made.nii.gz",
	}
	got := listFiles(t, clean)
	if !cmp.SliceEq(got, want) {
		t.Errorf("clean tree:\n  actual   = %v\n  expected = %v", got, want)
	}
}

func TestClean_MissingOutput(t *testing.T) {
	working := t.TempDir()
	touch(t, cleandata.StartTimeFile(working, subject, "StructuralPreprocessing"), time.Now())

	_, err := cleandata.New().Clean(context.Background(), working, t.TempDir(), subject, "StructuralPreprocessing")
	if err == nil {
		t.Error("missing processing output should be an error")
	}
}

func TestClean_MissingStartTime(t *testing.T) {
	working := t.TempDir()
	touch(t, filepath.Join(cleandata.OutputDir(working, subject), "T1w", "made.nii.gz"), time.Now())

	_, err := cleandata.New().Clean(context.Background(), working, t.TempDir(), subject, "StructuralPreprocessing")
	if err == nil {
		t.Error("missing start-time marker should be an error")
	}
}
