// Package filewatch ties contexts to files on disk.
package filewatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrModified is the cause of a context canceled by UntilModified.
var ErrModified = errors.New("watched file is modified")

// UntilModified returns a context canceled when one of files is written,
// created, removed or renamed. Permission changes are ignored.
//
// Directories holding the files are watched, not the files themselves, so
// replacing a file by rename (as editors do on save) is also a modification.
//
// context.Cause of the canceled context wraps ErrModified and names the file.
// When the watcher fails, the cause is the watcher's error.
//
// On error, the returned context and cancel function are nil.
func UntilModified(ctx context.Context, files ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	watching := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			w.Close()
			return nil, nil, err
		}
		watching[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := dirs[dir]; ok {
			continue
		}
		dirs[dir] = struct{}{}
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("watching %s: %w", f, err)
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(err)
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
					continue
				}
				if _, ok := watching[filepath.Clean(ev.Name)]; !ok {
					continue
				}
				cancel(fmt.Errorf("%w: %s (%s)", ErrModified, ev.Name, ev.Op))
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
