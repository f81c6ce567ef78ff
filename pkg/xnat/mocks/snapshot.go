package mocks

import (
	"io/fs"
	"os"
	"path/filepath"
)

// snapshot reads regular files under root (or root itself).
//
// Uploaded directories can be removed right after upload, so contents are captured at the call.
func snapshot(root string) map[string]string {
	files := map[string]string{}
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			rel = filepath.Base(p)
		}
		files[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	return files
}
