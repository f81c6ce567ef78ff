package overlay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

type Action int

const (
	// destination is already right
	Skipped Action = iota
	// destination is newly made
	Created
	// stale destination is removed and made again
	Replaced
)

func (a Action) String() string {
	switch a {
	case Skipped:
		return "skipped"
	case Created:
		return "created"
	case Replaced:
		return "replaced"
	}
	return "unknown"
}

type Event struct {
	Entry  Entry
	Action Action
}

type Stats struct {
	Created  int
	Skipped  int
	Replaced int
}

func (s Stats) Total() int {
	return s.Created + s.Skipped + s.Replaced
}

// Sync makes every destination file of the mapping.
//
// An existing destination is left as it is when it is a symlink to the source,
// the same inode as the source, or the same size as the source. Otherwise it is
// removed and made again. Entries marked ForceCopy are only left when they are
// already real copies.
//
// The first failure cancels the rest, and is returned with the path.
func (o *FS) Sync(ctx context.Context) (Stats, error) {
	var created, skipped, replaced atomic.Int64

	entries := o.Entries()
	if o.onStart != nil {
		o.onStart(len(entries))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			action, err := o.syncEntry(e)
			if err != nil {
				return err
			}
			switch action {
			case Skipped:
				skipped.Add(1)
				o.logger.Printf("skipping %s: up to date", e.Dest)
			case Created:
				created.Add(1)
			case Replaced:
				replaced.Add(1)
			}
			if o.observer != nil {
				o.observer(Event{Entry: e, Action: action})
			}
			return nil
		})
	}
	err := g.Wait()

	return Stats{
		Created:  int(created.Load()),
		Skipped:  int(skipped.Load()),
		Replaced: int(replaced.Load()),
	}, err
}

func (o *FS) strategyOf(e Entry) Strategy {
	if e.ForceCopy {
		return Copy
	}
	return o.strategy
}

func (o *FS) syncEntry(e Entry) (Action, error) {
	strategy := o.strategyOf(e)

	action := Created
	if lst, err := os.Lstat(e.Dest); err == nil {
		if upToDate(e, lst) {
			return Skipped, nil
		}
		if lst.IsDir() {
			return 0, &fs.PathError{Op: "sync", Path: e.Dest, Err: fmt.Errorf("a directory is in the way of %s", e.Source)}
		}
		if err := os.Remove(e.Dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, &fs.PathError{Op: "sync", Path: e.Dest, Err: err}
		}
		action = Replaced
	} else if !errors.Is(err, fs.ErrNotExist) {
		return 0, &fs.PathError{Op: "sync", Path: e.Dest, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(e.Dest), 0o775); err != nil {
		return 0, &fs.PathError{Op: "sync", Path: e.Dest, Err: err}
	}

	err := o.materialize(e, strategy)
	if errors.Is(err, fs.ErrExist) {
		// someone made it between the check and now. once more.
		if rerr := os.Remove(e.Dest); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			return 0, &fs.PathError{Op: "sync", Path: e.Dest, Err: rerr}
		}
		err = o.materialize(e, strategy)
		action = Replaced
	}
	if err != nil {
		return 0, &fs.PathError{Op: "sync", Path: e.Dest, Err: err}
	}
	return action, nil
}

func upToDate(e Entry, lst fs.FileInfo) bool {
	isLink := lst.Mode()&fs.ModeSymlink != 0
	if isLink {
		if e.ForceCopy {
			return false
		}
		if real, err := filepath.EvalSymlinks(e.Dest); err == nil && real == e.Source {
			return true
		}
	}

	st, err := os.Stat(e.Dest)
	if err != nil || !st.Mode().IsRegular() {
		return false
	}
	if os.SameFile(st, e.Info) {
		// a hardlink into the source is not a copy.
		return !e.ForceCopy
	}
	return st.Size() == e.Info.Size()
}

func (o *FS) materialize(e Entry, strategy Strategy) error {
	if o.beforeMaterialize != nil {
		o.beforeMaterialize(e)
	}
	switch strategy {
	case Symlink:
		return os.Symlink(e.Source, e.Dest)
	case Hardlink:
		return os.Link(e.Source, e.Dest)
	default:
		return copyFile(e.Source, e.Dest, e.Info)
	}
}

// copyFile copies the content, permission and modification time.
func copyFile(src, dest string, info fs.FileInfo) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = os.Chmod(dest, info.Mode().Perm())
		}
		if err == nil {
			err = os.Chtimes(dest, info.ModTime(), info.ModTime())
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
