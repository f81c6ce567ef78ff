// Package fetch lays out the resources a pipeline reads into a working directory.
package fetch

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"slices"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/overlay"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

type Fetcher struct {
	catalog  *archive.Catalog
	logger   *log.Logger
	overlays []overlay.Option
}

type Option func(*Fetcher) *Fetcher

func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) *Fetcher {
		if l != nil {
			f.logger = l
		}
		return f
	}
}

// WithOverlay passes options to the overlay used for each fetch.
func WithOverlay(opts ...overlay.Option) Option {
	return func(f *Fetcher) *Fetcher {
		f.overlays = append(f.overlays, opts...)
		return f
	}
}

func New(catalog *archive.Catalog, opts ...Option) *Fetcher {
	f := &Fetcher{catalog: catalog, logger: log.New(io.Discard, "", 0)}
	for _, o := range opts {
		f = o(f)
	}
	return f
}

type fetchOptions struct {
	pruneNonDirectories bool
}

type FetchOption func(*fetchOptions) *fetchOptions

// PruneNonDirectories removes files directly in the output directory after sync.
func PruneNonDirectories() FetchOption {
	return func(o *fetchOptions) *fetchOptions {
		o.pruneNonDirectories = true
		return o
	}
}

// Fetch materializes the sources of def for s into out.
//
// Sources are added newest stage first, so where two stages have the same
// file the later stage's one is taken. Unprocessed scans land in
// `{out}/{session}/unprocessed/{scan}`; everything else is merged into out.
func (f *Fetcher) Fetch(ctx context.Context, s session.Subject, def pipeline.Definition, out string, opts ...FetchOption) (overlay.Stats, error) {
	fo := &fetchOptions{}
	for _, o := range opts {
		fo = o(fo)
	}
	if err := def.Validate(s); err != nil {
		return overlay.Stats{}, err
	}
	out, err := filepath.Abs(out)
	if err != nil {
		return overlay.Stats{}, xe.Wrap(err)
	}

	ovl := overlay.New(append([]overlay.Option{overlay.WithLogger(f.logger)}, f.overlays...)...)

	unprocessed := filepath.Join(out, s.Session(), "unprocessed")
	for _, src := range slices.Backward(def.Sources) {
		filter := archive.NoFilter
		if src.PerScan {
			filter = s.Filter()
		}
		found := f.catalog.Resolve(s, src.Category, filter)
		if len(found) == 0 {
			f.logger.Printf("no %s resource for %s", src.Category, s)
		}
		for _, res := range found {
			dst := out
			if src.Category.Unprocessed() {
				dst = filepath.Join(unprocessed, archive.ScanName(filepath.Base(res)))
			}
			if err := ovl.AddTree(res, dst); err != nil {
				return overlay.Stats{}, xe.WrapWithNote(res, err)
			}
		}
	}

	for _, ps := range slices.Backward(def.ProjectSources) {
		project := ps.Project
		if project == "" {
			project = s.Project
		}
		for _, res := range f.catalog.ResolveProject(project, ps.Category) {
			if err := ovl.AddTree(res, out); err != nil {
				return overlay.Stats{}, xe.WrapWithNote(res, err)
			}
		}
	}

	if len(def.Prune) != 0 {
		n := ovl.Remove(overlay.MatchesAny(out, def.Prune...))
		f.logger.Printf("pruned %d files", n)
	}
	if len(def.ForceCopy) != 0 {
		n, err := ovl.ForceCopy(out, def.ForceCopy...)
		if err != nil {
			return overlay.Stats{}, xe.Configuration("pipeline %s: %s", def.Name, err)
		}
		f.logger.Printf("%d files will be copied", n)
	}

	f.logger.Printf("syncing %d files into %s", ovl.Len(), out)
	stats, err := ovl.Sync(ctx)
	if err != nil {
		return stats, err
	}

	if fo.pruneNonDirectories {
		if err := overlay.PruneNonDirectories(out); err != nil {
			return stats, xe.Wrap(err)
		}
	}
	return stats, nil
}
