// Package objfs implements the repository filesystem contract over a
// flat object Store.
//
// The backing store has no native directories, symlinks or permission
// bits, so all three are emulated:
//
//   - a directory is never materialized as an object; listing derives
//     entry names from the key prefix, and Mkdir writes a zero-byte
//     marker key ("dir/") only so that listing an otherwise-empty
//     directory succeeds. Rmdir removes every key under the prefix,
//     since a flat key space has no "directory must be empty" notion.
//   - a symlink is an object whose payload is the target string, tagged
//     with a reserved metadata attribute. Lstat checks the tag and never
//     dereferences; Stat and ReadFile dereference with a bounded hop
//     count.
//   - stat permission bits are synthesized constants (one fixed mode per
//     entry type). This is a documented, lossy translation: the store
//     cannot persist modes.
//
// The backing store must provide strong read-after-write consistency on
// a single key; an eventually-consistent store would corrupt the
// engine's view of its own just-written objects.
package objfs

import (
	"context"
	"io"
	"io/fs"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/errors"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs/safepath"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage/status"
)

const (
	// metaSymlink is the reserved metadata attribute tagging symlink
	// objects. Lookups are case-insensitive: some backends title-case
	// metadata keys on the way back.
	metaSymlink = "flotilla-symlink"

	// synthesized permission bits
	regularMode = fs.FileMode(0644)
	symlinkMode = fs.ModeSymlink | fs.FileMode(0777)
	dirMode     = fs.ModeDir | fs.FileMode(0755)

	// maxSymlinkHops bounds dereference chains, as the kernel would
	maxSymlinkHops = 8
)

// Option is a functor to pass optional parameters to the adapter
type Option func(*objFS)

// Logger specifies a logger for this adapter
func Logger(logger *zap.Logger) Option {
	return func(o *objFS) {
		if logger != nil {
			o.l = logger
		}
	}
}

// New creates a repository filesystem over the given flat store, under
// a per-repository key prefix.
func New(store storage.Store, prefix string, opts ...Option) (repofs.FS, error) {
	root, err := safepath.ResolveKey(prefix, "")
	if err != nil {
		return nil, err
	}
	o := &objFS{
		store: store,
		root:  root,
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(o)
	}
	return o, nil
}

type objFS struct {
	store storage.Store
	root  string
	l     *zap.Logger
}

func (o *objFS) String() string {
	return "objfs@" + o.store.String() + "/" + o.root
}

func (o *objFS) key(p string) (string, error) {
	return safepath.ResolveKey(o.root, p)
}

// rel converts a resolved key back to a repository-relative path
func (o *objFS) rel(key string) string {
	if key == o.root {
		return ""
	}
	return strings.TrimPrefix(key, o.root+"/")
}

func (o *objFS) listPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}

func pathError(op, p string, kind error) error {
	return &fs.PathError{Op: op, Path: p, Err: kind}
}

// mapErr translates store sentinels into the native error kinds the
// engine branches on
func mapErr(op, p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, status.ErrNotExists) || errors.Is(err, status.ErrNotFound):
		return pathError(op, p, fs.ErrNotExist)
	case errors.Is(err, status.ErrForbidden) || errors.Is(err, status.ErrUnauthorized):
		return pathError(op, p, fs.ErrPermission)
	case errors.Is(err, status.ErrExists):
		return pathError(op, p, fs.ErrExist)
	default:
		return err
	}
}

func isSymlinkAttrs(attrs storage.Attrs) bool {
	for k := range attrs.Metadata {
		if strings.EqualFold(k, metaSymlink) {
			return true
		}
	}
	return false
}

// exists reports whether an object is stored at exactly this key
func (o *objFS) exists(ctx context.Context, key string) (bool, error) {
	return o.store.Has(ctx, key)
}

// isDir reports whether the key denotes an emulated directory: the
// repository root, a marker object, or a prefix with at least one key
// under it
func (o *objFS) isDir(ctx context.Context, key string) (bool, error) {
	if key == o.root {
		return true, nil
	}
	has, err := o.store.Has(ctx, o.listPrefix(key))
	if err != nil || has {
		return has, err
	}
	keys, _, err := o.store.KeysPrefix(ctx, "", o.listPrefix(key), "", 1)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// deref follows emulated symlinks from a relative path down to a
// terminal object key and its attributes
func (o *objFS) deref(ctx context.Context, op, p string) (string, storage.Attrs, error) {
	rel := p
	for hops := 0; hops < maxSymlinkHops; hops++ {
		key, err := o.key(rel)
		if err != nil {
			return "", storage.Attrs{}, err
		}
		attrs, err := o.store.Head(ctx, key)
		if err != nil {
			return "", storage.Attrs{}, mapErr(op, p, err)
		}
		if !isSymlinkAttrs(attrs) {
			return key, attrs, nil
		}
		target, err := o.readPayload(ctx, op, p, key)
		if err != nil {
			return "", storage.Attrs{}, err
		}
		rel = retarget(rel, target)
	}
	return "", storage.Attrs{}, pathError(op, p, errTooManyLinks)
}

var errTooManyLinks = errors.New("too many levels of symbolic links")

// retarget computes the path a symlink at rel points to: relative
// targets resolve against the link's directory, targets with a leading
// separator are repository-root-relative
func retarget(rel, target string) string {
	if strings.HasPrefix(target, "/") {
		return target
	}
	return path.Join(path.Dir(rel), target)
}

func (o *objFS) readPayload(ctx context.Context, op, p, key string) (string, error) {
	rdr, err := o.store.Get(ctx, key)
	if err != nil {
		return "", mapErr(op, p, err)
	}
	defer rdr.Close()
	buf, err := ioutil.ReadAll(rdr)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (o *objFS) ReadFile(ctx context.Context, p string) (io.ReadCloser, error) {
	const op = "read"
	key, _, err := o.deref(ctx, op, p)
	if err != nil {
		if repofs.IsNotExist(err) {
			// reading a directory is a distinct failure from a missing file
			k, kerr := o.key(p)
			if kerr == nil {
				if dir, derr := o.isDir(ctx, k); derr == nil && dir {
					return nil, pathError(op, p, syscall.EISDIR)
				}
			}
		}
		return nil, err
	}
	rdr, err := o.store.Get(ctx, key)
	if err != nil {
		return nil, mapErr(op, p, err)
	}
	return rdr, nil
}

func (o *objFS) WriteFile(ctx context.Context, p string, source io.Reader, perm os.FileMode) error {
	const op = "write"
	key, err := o.key(p)
	if err != nil {
		return err
	}
	if key == o.root {
		return pathError(op, p, syscall.EISDIR)
	}
	if dir, err := o.isDir(ctx, key); err != nil {
		return err
	} else if dir {
		return pathError(op, p, syscall.EISDIR)
	}
	// parents come into being implicitly here, but never through an
	// existing regular file, as native mkdir -p would refuse
	if blocked, err := o.fileAncestor(ctx, key); err != nil {
		return mapErr(op, p, err)
	} else if blocked {
		return pathError(op, p, syscall.ENOTDIR)
	}
	// perm is dropped: modes are synthesized on this backend
	return mapErr(op, p, o.store.Put(ctx, key, source, storage.PutOptions{}))
}

// fileAncestor reports whether some ancestor of key already exists as a
// regular object, blocking its use as a directory
func (o *objFS) fileAncestor(ctx context.Context, key string) (bool, error) {
	for parent := path.Dir(key); parent != "." && parent != o.root; parent = path.Dir(parent) {
		has, err := o.exists(ctx, parent)
		if err != nil {
			return false, err
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

func (o *objFS) Unlink(ctx context.Context, p string) error {
	const op = "unlink"
	key, err := o.key(p)
	if err != nil {
		return err
	}
	has, err := o.exists(ctx, key)
	if err != nil {
		return mapErr(op, p, err)
	}
	if !has {
		if dir, derr := o.isDir(ctx, key); derr == nil && dir {
			return pathError(op, p, syscall.EISDIR)
		}
		return pathError(op, p, fs.ErrNotExist)
	}
	return mapErr(op, p, o.store.Delete(ctx, key))
}

func (o *objFS) ReadDir(ctx context.Context, p string) ([]string, error) {
	const op = "readdir"
	key, err := o.key(p)
	if err != nil {
		return nil, err
	}
	prefix := o.listPrefix(key)

	seen := make(map[string]bool)
	names := make([]string, 0, 16)
	token := ""
	for {
		keys, next, err := o.store.KeysPrefix(ctx, token, prefix, "/", storage.MaxKeysPerPage)
		if err != nil {
			return nil, mapErr(op, p, err)
		}
		for _, k := range keys {
			// reduce to the first path segment past the prefix; common
			// prefixes come back with a trailing delimiter
			name := strings.TrimSuffix(strings.TrimPrefix(k, prefix), "/")
			if name == "" {
				// the directory's own marker object
				continue
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		if next == "" {
			break
		}
		token = next
	}

	if len(names) == 0 && key != o.root {
		// distinguish an empty directory from a missing one
		dir, err := o.isDir(ctx, key)
		if err != nil {
			return nil, mapErr(op, p, err)
		}
		if !dir {
			if has, err := o.exists(ctx, key); err == nil && has {
				return nil, pathError(op, p, syscall.ENOTDIR)
			}
			return nil, pathError(op, p, fs.ErrNotExist)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (o *objFS) Mkdir(ctx context.Context, p string) error {
	const op = "mkdir"
	key, err := o.key(p)
	if err != nil {
		return err
	}
	if key == o.root {
		return pathError(op, p, fs.ErrExist)
	}
	if has, err := o.exists(ctx, key); err != nil {
		return mapErr(op, p, err)
	} else if has {
		return pathError(op, p, fs.ErrExist)
	}
	if dir, err := o.isDir(ctx, key); err != nil {
		return err
	} else if dir {
		return pathError(op, p, fs.ErrExist)
	}
	// the parent must exist, as native mkdir demands
	parent := path.Dir(key)
	if parent != "." && parent != key {
		if dir, err := o.isDir(ctx, parent); err != nil {
			return err
		} else if !dir {
			return pathError(op, p, fs.ErrNotExist)
		}
	}
	return o.putMarker(ctx, op, p, key)
}

func (o *objFS) MkdirAll(ctx context.Context, p string) error {
	const op = "mkdir"
	key, err := o.key(p)
	if err != nil {
		return err
	}
	if key == o.root {
		return nil
	}
	if has, err := o.exists(ctx, key); err != nil {
		return mapErr(op, p, err)
	} else if has {
		return pathError(op, p, syscall.ENOTDIR)
	}
	if dir, err := o.isDir(ctx, key); err != nil || dir {
		return err
	}
	if blocked, err := o.fileAncestor(ctx, key); err != nil {
		return mapErr(op, p, err)
	} else if blocked {
		return pathError(op, p, syscall.ENOTDIR)
	}
	// a single marker at the leaf covers the whole chain: every
	// intermediate segment becomes listable through prefix reduction
	return o.putMarker(ctx, op, p, key)
}

func (o *objFS) putMarker(ctx context.Context, op, p, key string) error {
	return mapErr(op, p, o.store.Put(ctx, o.listPrefix(key), strings.NewReader(""), storage.PutOptions{}))
}

func (o *objFS) Rmdir(ctx context.Context, p string) error {
	const op = "rmdir"
	key, err := o.key(p)
	if err != nil {
		return err
	}
	if has, err := o.exists(ctx, key); err != nil {
		return mapErr(op, p, err)
	} else if has {
		return pathError(op, p, syscall.ENOTDIR)
	}
	dir, err := o.isDir(ctx, key)
	if err != nil {
		return err
	}
	if !dir {
		return pathError(op, p, fs.ErrNotExist)
	}

	// the store has no emptiness precondition: delete the whole subtree,
	// marker included
	prefix := o.listPrefix(key)
	for {
		keys, next, err := o.store.KeysPrefix(ctx, "", prefix, "", storage.MaxKeysPerPage)
		if err != nil {
			return mapErr(op, p, err)
		}
		if len(keys) == 0 {
			return nil
		}
		for _, k := range keys {
			if err = o.store.Delete(ctx, k); err != nil {
				return mapErr(op, p, err)
			}
		}
		if next == "" {
			return nil
		}
	}
}

func (o *objFS) Stat(ctx context.Context, p string) (repofs.FileInfo, error) {
	const op = "stat"
	key, attrs, err := o.deref(ctx, op, p)
	if err != nil {
		if repofs.IsNotExist(err) {
			return o.statDir(ctx, op, p, err)
		}
		return repofs.FileInfo{}, err
	}
	return synthesize(path.Base(key), attrs, false), nil
}

func (o *objFS) Lstat(ctx context.Context, p string) (repofs.FileInfo, error) {
	const op = "lstat"
	key, err := o.key(p)
	if err != nil {
		return repofs.FileInfo{}, err
	}
	attrs, err := o.store.Head(ctx, key)
	if err != nil {
		err = mapErr(op, p, err)
		if repofs.IsNotExist(err) {
			return o.statDir(ctx, op, p, err)
		}
		return repofs.FileInfo{}, err
	}
	// the tag decides symlink vs regular file, no dereference happens here
	return synthesize(path.Base(key), attrs, isSymlinkAttrs(attrs)), nil
}

// statDir reports an emulated directory, or re-raises notFound when the
// path is no directory either
func (o *objFS) statDir(ctx context.Context, op, p string, notFound error) (repofs.FileInfo, error) {
	key, err := o.key(p)
	if err != nil {
		return repofs.FileInfo{}, err
	}
	dir, err := o.isDir(ctx, key)
	if err != nil {
		return repofs.FileInfo{}, err
	}
	if !dir {
		return repofs.FileInfo{}, notFound
	}
	name := path.Base(key)
	if key == o.root {
		name = "/"
	}
	return repofs.NewFileInfo(name, 0, dirMode, time.Time{}), nil
}

func synthesize(name string, attrs storage.Attrs, symlink bool) repofs.FileInfo {
	mode := regularMode
	if symlink {
		mode = symlinkMode
	}
	return repofs.NewFileInfo(name, attrs.Size, mode, attrs.ModTime)
}

func (o *objFS) Readlink(ctx context.Context, p string) (string, error) {
	const op = "readlink"
	key, err := o.key(p)
	if err != nil {
		return "", err
	}
	attrs, err := o.store.Head(ctx, key)
	if err != nil {
		return "", mapErr(op, p, err)
	}
	if !isSymlinkAttrs(attrs) {
		return "", pathError(op, p, syscall.EINVAL)
	}
	return o.readPayload(ctx, op, p, key)
}

func (o *objFS) Symlink(ctx context.Context, target, linkPath string) error {
	const op = "symlink"
	key, err := o.key(linkPath)
	if err != nil {
		return err
	}
	if key == o.root {
		return pathError(op, linkPath, fs.ErrExist)
	}
	if has, err := o.exists(ctx, key); err != nil {
		return mapErr(op, linkPath, err)
	} else if has {
		return pathError(op, linkPath, fs.ErrExist)
	}
	if dir, err := o.isDir(ctx, key); err != nil {
		return err
	} else if dir {
		return pathError(op, linkPath, fs.ErrExist)
	}
	if blocked, err := o.fileAncestor(ctx, key); err != nil {
		return mapErr(op, linkPath, err)
	} else if blocked {
		return pathError(op, linkPath, syscall.ENOTDIR)
	}
	o.l.Debug("symlink", zap.String("link", linkPath), zap.String("target", target))
	return mapErr(op, linkPath, o.store.Put(ctx, key, strings.NewReader(target),
		storage.PutOptions{Metadata: map[string]string{metaSymlink: "1"}}))
}
