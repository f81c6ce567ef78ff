package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

// ErrManifestNotFound is a configuration error: no search location has the manifest.
var ErrManifestNotFound = fmt.Errorf("%w: expected-file manifest is not found", xe.ErrConfiguration)

// DefaultFieldmap is the fieldmap kind used when none is given.
const DefaultFieldmap = "SpinEcho"

// FileName is the default manifest file name for a fieldmap kind.
func FileName(fieldmap string) string {
	if fieldmap == "" {
		fieldmap = DefaultFieldmap
	}
	return "ExpectedOutputFiles-FieldMap-" + fieldmap + ".CCF.txt"
}

// Locator finds manifests in search locations.
//
// A manifest of a processing is `{searchPath}/{processingName}/{file}`.
// Search paths are tried in order and the first one having the file wins.
type Locator struct {
	searchPaths []string
}

func NewLocator(searchPaths ...string) *Locator {
	return &Locator{searchPaths: searchPaths}
}

// Find returns the path of the manifest.
//
// An absolute file is used as it is.
func (l *Locator) Find(processingName, file string) (string, error) {
	if filepath.IsAbs(file) {
		if st, err := os.Stat(file); err == nil && st.Mode().IsRegular() {
			return file, nil
		}
		return "", fmt.Errorf("%w: %s", ErrManifestNotFound, file)
	}

	tried := make([]string, 0, len(l.searchPaths))
	for _, sp := range l.searchPaths {
		candidate := filepath.Join(sp, processingName, file)
		st, err := os.Stat(candidate)
		if err == nil && st.Mode().IsRegular() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrManifestNotFound, candidate, err)
		}
		tried = append(tried, candidate)
	}
	return "", fmt.Errorf("%w: tried %v", ErrManifestNotFound, tried)
}

// Load reads the manifest text.
func (l *Locator) Load(processingName, file string) (string, error) {
	p, err := l.Find(processingName, file)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrManifestNotFound, p, err)
	}
	return string(b), nil
}
