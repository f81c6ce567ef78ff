// Package overlay materializes archive trees into a working directory.
//
// Building and syncing are separated. Building (AddTree, AddUnder) walks source
// trees and records which source file each destination path is made from;
// it writes nothing. Remove and ForceCopy edit that mapping. Sync then makes
// the destination files with the configured Strategy, concurrently.
//
//	o := overlay.New(overlay.WithStrategy(overlay.Symlink), overlay.WithLogger(logger))
//	if err := o.AddTree(structuralPreproc, workdir); err != nil { ... }
//	o.Remove(overlay.Below(filepath.Join(workdir, "logs")))
//	stats, err := o.Sync(ctx)
package overlay

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is a destination file and the source it is made from.
type Entry struct {
	// Source is the real, absolute path of the source file.
	Source string

	// Dest is the absolute path of the destination file.
	Dest string

	// Info is the stat of Source at the time it was added.
	Info fs.FileInfo

	// ForceCopy entries are synced as real copies whatever the strategy.
	ForceCopy bool
}

type FS struct {
	strategy    Strategy
	concurrency int
	logger      *log.Logger
	observer    func(Event)
	onStart     func(total int)

	// called right before a destination is made. nil in production.
	beforeMaterialize func(Entry)

	entries map[string]*Entry
}

type Option func(*FS) *FS

func WithStrategy(s Strategy) Option {
	return func(o *FS) *FS {
		o.strategy = s
		return o
	}
}

// WithConcurrency bounds the number of entries synced at once.
func WithConcurrency(n int) Option {
	return func(o *FS) *FS {
		if n < 1 {
			n = 1
		}
		o.concurrency = n
		return o
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *FS) *FS {
		if l != nil {
			o.logger = l
		}
		return o
	}
}

// WithSyncStart registers a function called when Sync starts,
// with the number of entries to be synced.
func WithSyncStart(f func(total int)) Option {
	return func(o *FS) *FS {
		o.onStart = f
		return o
	}
}

// WithObserver registers a function called for each synced entry.
//
// It is called from sync workers concurrently.
func WithObserver(f func(Event)) Option {
	return func(o *FS) *FS {
		o.observer = f
		return o
	}
}

func New(options ...Option) *FS {
	o := &FS{
		strategy:    Symlink,
		concurrency: 8,
		logger:      log.New(io.Discard, "", 0),
		entries:     map[string]*Entry{},
	}
	for _, opt := range options {
		o = opt(o)
	}
	return o
}

// AddTree maps the contents of src into dst: src/a/b lands at dst/a/b.
//
// A symlinked src is resolved first. Symlinks inside are followed, and a
// directory already visited in this call is skipped with a diagnostic,
// so links back to an ancestor do not recurse.
//
// A destination already mapped keeps its source (first writer wins).
func (o *FS) AddTree(src, dst string) error {
	real, info, err := resolve(src)
	if err != nil {
		return err
	}
	dst, err = filepath.Abs(dst)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		o.add(real, info, filepath.Join(dst, filepath.Base(src)))
		return nil
	}

	visited := map[string]struct{}{real: {}}
	return o.walk(real, dst, visited)
}

// AddUnder maps src to parent/basename(src). src may be a file.
func (o *FS) AddUnder(src, parent string) error {
	_, info, err := resolve(src)
	if err != nil {
		return err
	}
	dst := filepath.Join(parent, filepath.Base(filepath.Clean(src)))
	if info.IsDir() {
		return o.AddTree(src, dst)
	}
	return o.AddTree(src, parent)
}

func resolve(p string) (string, fs.FileInfo, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", nil, err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", nil, err
	}
	return real, info, nil
}

func (o *FS) walk(srcDir, dstDir string, visited map[string]struct{}) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}

	for _, de := range entries {
		sp := filepath.Join(srcDir, de.Name())
		dp := filepath.Join(dstDir, de.Name())

		info, err := os.Lstat(sp)
		if err != nil {
			return err
		}

		if info.Mode()&fs.ModeSymlink != 0 {
			real, err := filepath.EvalSymlinks(sp)
			if err != nil {
				o.logger.Printf("skipping broken symlink: %s", sp)
				continue
			}
			if info, err = os.Stat(real); err != nil {
				o.logger.Printf("skipping unreadable symlink target: %s -> %s", sp, real)
				continue
			}
			sp = real
		}

		switch {
		case info.IsDir():
			if _, ok := visited[sp]; ok {
				o.logger.Printf("already visited, skipping: %s (as %s)", sp, dp)
				continue
			}
			visited[sp] = struct{}{}
			if err := o.walk(sp, dp, visited); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			o.add(sp, info, dp)
		default:
			// sockets, devices, pipes
		}
	}
	return nil
}

func (o *FS) add(src string, info fs.FileInfo, dest string) {
	if cur, ok := o.entries[dest]; ok {
		if cur.Source != src {
			o.logger.Printf("already mapped, keeping %s for %s (not %s)", cur.Source, dest, src)
		}
		return
	}
	o.entries[dest] = &Entry{Source: src, Dest: dest, Info: info}
}

// Len is the number of mapped entries.
func (o *FS) Len() int {
	return len(o.entries)
}

// Entries returns the mapping, sorted by destination.
func (o *FS) Entries() []Entry {
	es := make([]Entry, 0, len(o.entries))
	for _, e := range o.entries {
		es = append(es, *e)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].Dest < es[j].Dest })
	return es
}

// Remove drops entries for which pred is true, and returns how many are dropped.
func (o *FS) Remove(pred func(Entry) bool) int {
	n := 0
	for dest, e := range o.entries {
		if pred(*e) {
			delete(o.entries, dest)
			n += 1
		}
	}
	return n
}

// ForceCopy marks entries matching any of globs (relative to root, see Match)
// to be synced as real copies. It returns how many are marked.
func (o *FS) ForceCopy(root string, globs ...string) (int, error) {
	for _, g := range globs {
		if err := ValidatePattern(g); err != nil {
			return 0, fmt.Errorf("force-copy rule %q: %w", g, err)
		}
	}
	pred := MatchesAny(root, globs...)
	n := 0
	for _, e := range o.entries {
		if pred(*e) {
			e.ForceCopy = true
			n += 1
		}
	}
	return n, nil
}

// OlderThan is true for entries whose source was modified before t.
func OlderThan(t time.Time) func(Entry) bool {
	return func(e Entry) bool {
		return e.Info.ModTime().Before(t)
	}
}

// Below is true for entries whose destination is under dir.
func Below(dir string) func(Entry) bool {
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	return func(e Entry) bool {
		return strings.HasPrefix(e.Dest, prefix)
	}
}

// NameHasSuffix is true for entries whose destination name ends with suffix.
func NameHasSuffix(suffix string) func(Entry) bool {
	return func(e Entry) bool {
		return strings.HasSuffix(filepath.Base(e.Dest), suffix)
	}
}

// MatchesAny is true for entries whose destination, relative to root,
// matches any of globs. Invalid globs match nothing.
func MatchesAny(root string, globs ...string) func(Entry) bool {
	root = filepath.Clean(root)
	return func(e Entry) bool {
		rel, err := filepath.Rel(root, e.Dest)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return false
		}
		for _, g := range globs {
			if ok, _ := Match(g, rel); ok {
				return true
			}
		}
		return false
	}
}

// PruneNonDirectories removes the files directly in dir, keeping directories.
func PruneNonDirectories(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		p := filepath.Join(dir, de.Name())
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
