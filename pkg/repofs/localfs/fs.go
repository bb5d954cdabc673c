// Package localfs implements the repository filesystem contract over a
// local directory tree.
//
// Each contract operation maps directly onto the corresponding
// filesystem primitive after path resolution. Native I/O error kinds
// (not-found, permission-denied, ...) propagate unchanged so the engine
// can react to them.
package localfs

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/afero"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs/safepath"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage"
)

// Option is a functor to pass optional parameters to the adapter
type Option func(*localFS)

// WithAferoFs overrides the backing afero filesystem, mostly for tests.
// Symlink operations require a backend implementing afero's symlink
// interfaces (the OS filesystem does).
func WithAferoFs(fs afero.Fs) Option {
	return func(l *localFS) {
		if fs != nil {
			l.fs = fs
		}
	}
}

// New creates a repository filesystem rooted at the given directory.
// The root is created when missing.
func New(root string, opts ...Option) (repofs.FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	l := &localFS{
		root: abs,
		fs:   afero.NewOsFs(),
	}
	for _, apply := range opts {
		apply(l)
	}
	if err = l.fs.MkdirAll(abs, 0755); err != nil {
		return nil, err
	}
	return l, nil
}

type localFS struct {
	root string
	fs   afero.Fs
}

func (l *localFS) String() string {
	return "localfs@" + l.root
}

func (l *localFS) resolve(p string) (string, error) {
	return safepath.Resolve(l.root, p)
}

func (l *localFS) ReadFile(ctx context.Context, p string) (io.ReadCloser, error) {
	abs, err := l.resolve(p)
	if err != nil {
		return nil, err
	}
	return l.fs.Open(abs)
}

func (l *localFS) WriteFile(ctx context.Context, p string, source io.Reader, perm os.FileMode) error {
	abs, err := l.resolve(p)
	if err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	parent := filepath.Dir(abs)
	if err = l.fs.MkdirAll(parent, 0755); err != nil {
		return err
	}
	// stage next to the destination and rename into place: an aborted
	// source must never leave a partial object at the final path, nor
	// truncate a previously committed one
	staged, err := afero.TempFile(l.fs, parent, ".write-stage")
	if err != nil {
		return err
	}
	// if the reader implements WriterTo, use it
	if wt, ok := source.(io.WriterTo); ok {
		_, err = wt.WriteTo(staged)
	} else {
		_, err = storage.PipeIO(staged, source)
	}
	if err != nil {
		_ = staged.Close()
		_ = l.fs.Remove(staged.Name())
		return err
	}
	if err = staged.Close(); err != nil {
		_ = l.fs.Remove(staged.Name())
		return err
	}
	if err = l.fs.Chmod(staged.Name(), perm); err != nil {
		_ = l.fs.Remove(staged.Name())
		return err
	}
	return l.fs.Rename(staged.Name(), abs)
}

func (l *localFS) Unlink(ctx context.Context, p string) error {
	abs, err := l.resolve(p)
	if err != nil {
		return err
	}
	fi, err := l.lstat(abs)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return &fs.PathError{Op: "unlink", Path: p, Err: syscall.EISDIR}
	}
	return l.fs.Remove(abs)
}

func (l *localFS) ReadDir(ctx context.Context, p string) ([]string, error) {
	abs, err := l.resolve(p)
	if err != nil {
		return nil, err
	}
	dir, err := l.fs.Open(abs)
	if err != nil {
		return nil, err
	}
	defer dir.Close()
	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (l *localFS) Mkdir(ctx context.Context, p string) error {
	abs, err := l.resolve(p)
	if err != nil {
		return err
	}
	return l.fs.Mkdir(abs, 0755)
}

func (l *localFS) MkdirAll(ctx context.Context, p string) error {
	abs, err := l.resolve(p)
	if err != nil {
		return err
	}
	return l.fs.MkdirAll(abs, 0755)
}

func (l *localFS) Rmdir(ctx context.Context, p string) error {
	abs, err := l.resolve(p)
	if err != nil {
		return err
	}
	fi, err := l.lstat(abs)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &fs.PathError{Op: "rmdir", Path: p, Err: syscall.ENOTDIR}
	}
	// non-recursive: fails on a non-empty directory
	return l.fs.Remove(abs)
}

func (l *localFS) Stat(ctx context.Context, p string) (repofs.FileInfo, error) {
	abs, err := l.resolve(p)
	if err != nil {
		return repofs.FileInfo{}, err
	}
	fi, err := l.fs.Stat(abs)
	if err != nil {
		return repofs.FileInfo{}, err
	}
	return repofs.FileInfoFromOS(fi), nil
}

func (l *localFS) Lstat(ctx context.Context, p string) (repofs.FileInfo, error) {
	abs, err := l.resolve(p)
	if err != nil {
		return repofs.FileInfo{}, err
	}
	fi, err := l.lstat(abs)
	if err != nil {
		return repofs.FileInfo{}, err
	}
	return repofs.FileInfoFromOS(fi), nil
}

// lstat avoids following a terminal symlink whenever the backing
// filesystem can tell links apart
func (l *localFS) lstat(abs string) (os.FileInfo, error) {
	if lfs, ok := l.fs.(afero.Lstater); ok {
		fi, _, err := lfs.LstatIfPossible(abs)
		return fi, err
	}
	return l.fs.Stat(abs)
}

func (l *localFS) Readlink(ctx context.Context, p string) (string, error) {
	abs, err := l.resolve(p)
	if err != nil {
		return "", err
	}
	lr, ok := l.fs.(afero.LinkReader)
	if !ok {
		return "", afero.ErrNoReadlink
	}
	return lr.ReadlinkIfPossible(abs)
}

func (l *localFS) Symlink(ctx context.Context, target, linkPath string) error {
	abs, err := l.resolve(linkPath)
	if err != nil {
		return err
	}
	linker, ok := l.fs.(afero.Linker)
	if !ok {
		return afero.ErrNoSymlink
	}
	if err = l.fs.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	// the target is stored verbatim, relative targets stay relative
	return linker.SymlinkIfPossible(target, abs)
}
