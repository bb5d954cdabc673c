package repofs

import (
	"context"
	"io"
	"io/fs"
	"os"
	"time"
)

// FS is the POSIX-like contract the version-control engine depends on.
//
// Paths are repository-relative, forward-slash separated and untrusted:
// implementations sanitize them before any storage access. A rejected
// path surfaces as a path-traversal error, never as a not-found or an
// empty result.
//
// Operations are safe for concurrent use. The storage layer performs no
// locking beyond single-call atomicity: writes are atomic per file
// (fully written or not observably present), and serializing writers to
// one logical resource is the engine's responsibility.
type FS interface {
	String() string

	// ReadFile opens the file for reading, following symbolic links
	ReadFile(ctx context.Context, path string) (io.ReadCloser, error)

	// WriteFile creates or replaces the file with the payload read from
	// source, creating parent directories as needed. The permission bits
	// apply where the backing store can persist them.
	WriteFile(ctx context.Context, path string, source io.Reader, perm os.FileMode) error

	// Unlink removes the file or symbolic link
	Unlink(ctx context.Context, path string) error

	// ReadDir returns the names of the direct entries of the directory,
	// sorted, non-recursive
	ReadDir(ctx context.Context, path string) ([]string, error)

	// Mkdir creates the directory. The parent must exist.
	Mkdir(ctx context.Context, path string) error

	// MkdirAll creates the directory along with any missing parents
	MkdirAll(ctx context.Context, path string) error

	// Rmdir removes the directory. On stores with native directories the
	// directory must be empty; on emulated stores the whole subtree is
	// removed, since a flat key space has no emptiness precondition.
	Rmdir(ctx context.Context, path string) error

	// Stat describes the file the path resolves to, following symbolic links
	Stat(ctx context.Context, path string) (FileInfo, error)

	// Lstat describes the path itself, never following a terminal
	// symbolic link
	Lstat(ctx context.Context, path string) (FileInfo, error)

	// Readlink returns the target of a symbolic link
	Readlink(ctx context.Context, path string) (string, error)

	// Symlink creates a symbolic link at linkPath pointing at target.
	// The target string is stored verbatim.
	Symlink(ctx context.Context, target, linkPath string) error
}

// FileInfo is the entry metadata shape shared by all FS implementations.
//
// Type predicates are computed once when the entry is translated from
// native (or synthesized) metadata, not re-queried lazily.
type FileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time

	regular bool
	dir     bool
	symlink bool
}

// NewFileInfo builds a FileInfo from explicit metadata.
func NewFileInfo(name string, size int64, mode fs.FileMode, modTime time.Time) FileInfo {
	return FileInfo{
		name:    name,
		size:    size,
		mode:    mode,
		modTime: modTime,
		regular: mode.IsRegular(),
		dir:     mode.IsDir(),
		symlink: mode&fs.ModeSymlink != 0,
	}
}

// FileInfoFromOS translates native stat metadata.
func FileInfoFromOS(fi os.FileInfo) FileInfo {
	return NewFileInfo(fi.Name(), fi.Size(), fi.Mode(), fi.ModTime())
}

// Name of the entry (base name, not the full path)
func (f FileInfo) Name() string { return f.name }

// Size in bytes
func (f FileInfo) Size() int64 { return f.size }

// Mode bits
func (f FileInfo) Mode() fs.FileMode { return f.mode }

// ModTime is the last modification time
func (f FileInfo) ModTime() time.Time { return f.modTime }

// IsRegular tells a regular file apart from directories and links
func (f FileInfo) IsRegular() bool { return f.regular }

// IsDir tells a directory
func (f FileInfo) IsDir() bool { return f.dir }

// IsSymlink tells a symbolic link. Lstat reports it; Stat never does.
func (f FileInfo) IsSymlink() bool { return f.symlink }
