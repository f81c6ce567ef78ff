// Package tarball streams directory trees as tar.gz.
package tarball

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

var ErrSymlinkLoop = errors.New("symlink loop")

type options struct {
	keepSymlinks bool
}

type Option func(*options) *options

// KeepSymlinks archives symlinks as links.
//
// By default, symlinks are followed and the archive carries what they point to.
func KeepSymlinks() Option {
	return func(o *options) *options {
		o.keepSymlinks = true
		return o
	}
}

// Stats counts what is archived.
type Stats struct {
	Files int
	Bytes int64
}

// Write archives the directory tree under root into w as tar.gz.
//
// Entry names are `/`-separated and relative to root. root itself is not an entry.
func Write(ctx context.Context, root string, w io.Writer, opts ...Option) (Stats, error) {
	o := &options{}
	for _, opt := range opts {
		o = opt(o)
	}

	info, err := os.Stat(root)
	if err != nil {
		return Stats{}, err
	}
	if !info.IsDir() {
		return Stats{}, fmt.Errorf("%s: not a directory", root)
	}

	gz := gzip.NewWriter(w)
	a := &archiver{
		ctx:       ctx,
		tw:        tar.NewWriter(gz),
		keepLinks: o.keepSymlinks,
		ancestors: map[string]struct{}{},
	}
	if err := a.dir(root, ""); err != nil {
		return a.stats, err
	}
	if err := a.tw.Close(); err != nil {
		return a.stats, err
	}
	return a.stats, gz.Close()
}

// Reader archives root in background and returns the tar.gz stream.
//
// Reading fails with the archiving error, if any. Closing the reader stops archiving.
func Reader(ctx context.Context, root string, opts ...Option) io.ReadCloser {
	r, w := io.Pipe()
	go func() {
		_, err := Write(ctx, root, w, opts...)
		w.CloseWithError(err)
	}()
	return r
}

type archiver struct {
	ctx       context.Context
	tw        *tar.Writer
	keepLinks bool
	stats     Stats

	// real paths of directories being archived, to detect loops via symlinks.
	ancestors map[string]struct{}
}

func (a *archiver) dir(dir string, rel string) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if _, ok := a.ancestors[real]; ok {
		return fmt.Errorf("%w: %s", ErrSymlinkLoop, dir)
	}
	a.ancestors[real] = struct{}{}
	defer delete(a.ancestors, real)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := a.ctx.Err(); err != nil {
			return err
		}
		if err := a.entry(filepath.Join(dir, e.Name()), path.Join(rel, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (a *archiver) entry(p string, rel string) error {
	info, err := os.Lstat(p)
	if err != nil {
		return err
	}
	link := ""
	if info.Mode()&fs.ModeSymlink != 0 {
		if a.keepLinks {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		} else if info, err = os.Stat(p); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = rel
	if info.IsDir() {
		hdr.Name += "/"
	}
	if err := a.tw.WriteHeader(hdr); err != nil {
		return err
	}

	switch {
	case link != "":
		return nil
	case info.IsDir():
		return a.dir(p, rel)
	case info.Mode().IsRegular():
		return a.file(p)
	}
	return nil
}

func (a *archiver) file(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(a.tw, f)
	a.stats.Bytes += n
	if err != nil {
		return err
	}
	a.stats.Files += 1
	return nil
}

// Walk calls fn for each entry of a tar.gz stream. It does not close r.
func Walk(r io.Reader, fn func(hdr *tar.Header, content io.Reader) error) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}
