// Package completion decides whether a pipeline's output is present, fresh and whole.
//
// A check reads mtimes and tests existence. It never writes, so a Checker can be
// shared between goroutines checking different sessions.
package completion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/manifest"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

type Checker struct {
	catalog   *archive.Catalog
	manifests *manifest.Locator
}

func New(catalog *archive.Catalog, manifests *manifest.Locator) *Checker {
	return &Checker{catalog: catalog, manifests: manifests}
}

type options struct {
	shortCircuit bool
	fieldmap     string
}

type Option func(*options) *options

// WithShortCircuit stops the manifest check at the first absent file.
func WithShortCircuit() Option {
	return func(o *options) *options {
		o.shortCircuit = true
		return o
	}
}

// WithFieldmap selects the default manifest for the fieldmap kind.
func WithFieldmap(fieldmap string) Option {
	return func(o *options) *options {
		o.fieldmap = fieldmap
		return o
	}
}

// Check the output of spec for the subject.
//
// Incompleteness is reported in Result. The error is for failures to check,
// like a missing manifest (manifest.ErrManifestNotFound).
func (c *Checker) Check(s session.Subject, spec Spec, opts ...Option) (Result, error) {
	o := &options{}
	for _, opt := range opts {
		o = opt(o)
	}

	resource := c.catalog.Layout().Resource(s, spec.Output.For(s))
	result := Result{Subject: s, Resource: resource}

	rstat, err := os.Stat(resource)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !rstat.IsDir()) {
		result.Reason = Missing
		return result, nil
	} else if err != nil {
		return result, err
	}

	newest, newestTime, err := c.newestPrerequisite(s, spec.Prerequisites)
	if err != nil {
		return result, err
	}
	result.NewestPrerequisite = newest
	if !rstat.ModTime().After(newestTime) {
		result.Reason = Stale
		return result, nil
	}

	file := spec.Manifest
	if file == "" {
		file = manifest.FileName(o.fieldmap)
	}
	text, err := c.manifests.Load(spec.ProcessingName, file)
	if err != nil {
		return result, err
	}

	root := filepath.Join(resource, s.Session())
	expected, err := manifest.Expand(text, manifest.Substitutions{
		manifest.KeySubjectID: s.Session(),
		manifest.KeyScan:      s.Extra,
	})
	if err != nil {
		return result, err
	}

	result.Files = make([]FileCheck, 0, len(expected))
	complete := true
	for _, rel := range expected {
		p := filepath.Join(root, rel)
		_, err := os.Stat(p)
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return result, fmt.Errorf("checking %s: %w", p, err)
		}
		result.Files = append(result.Files, FileCheck{Path: p, Exists: exists})
		if !exists {
			complete = false
			if o.shortCircuit {
				break
			}
		}
	}

	if !complete {
		result.Reason = FilesMissing
		return result, nil
	}
	result.Complete = true
	return result, nil
}

// newestPrerequisite finds the most recently modified prerequisite resource.
//
// With no prerequisites, the time is the zero time.
func (c *Checker) newestPrerequisite(s session.Subject, cats []archive.Category) (string, time.Time, error) {
	newest := ""
	newestTime := time.Time{}
	for _, cat := range cats {
		for _, p := range c.catalog.Resolve(s, cat, s.Filter()) {
			st, err := os.Stat(p)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue // removed between glob and stat
				}
				return "", time.Time{}, err
			}
			if st.ModTime().After(newestTime) {
				newest = p
				newestTime = st.ModTime()
			}
		}
	}
	return newest, newestTime, nil
}
