// Package localfs implements the flat object Store over a local
// file system tree.
//
// Puts are atomic: payloads land in a reserved staging area, then are
// renamed into place. Object metadata is persisted in a reserved
// sidecar area. Both reserved areas are invisible to listings and
// rejected as user keys.
package localfs

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage/status"
	"github.com/spf13/afero"
)

/* reserved key prefixes and helper functions */
const (
	nestedPutStageName = ".put-stage"
	nestedMetaName     = ".obj-meta"

	// dirMarkerLeafName carries keys with a trailing separator, which a
	// file system cannot represent as file names
	dirMarkerLeafName = ".dir-marker"
)

func maybeInvalidKey(key string) error {
	pathComponents := strings.Split(strings.TrimLeft(key, "/"), "/")
	if len(pathComponents) == 0 {
		return nil
	}
	switch pathComponents[0] {
	case nestedPutStageName, nestedMetaName:
		return status.ErrInvalidResource
	}
	for _, component := range pathComponents {
		if component == dirMarkerLeafName {
			return status.ErrInvalidResource
		}
	}
	return nil
}

// physicalKey maps a logical key onto its on-disk file path. Keys with
// a trailing separator land on a reserved leaf file inside the
// directory they denote; all other keys map verbatim.
func physicalKey(key string) string {
	if strings.HasSuffix(key, "/") {
		return key + dirMarkerLeafName
	}
	return key
}

// logicalKey reverses physicalKey when walking the tree
func logicalKey(walked string) string {
	if path.Base(walked) == dirMarkerLeafName {
		return strings.TrimSuffix(walked, dirMarkerLeafName)
	}
	return walked
}

// New creates a new local file system backed object store. When fs is
// nil, objects live under .flotilla/objects in the working directory.
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".flotilla", "objects"))
	}
	return &localFS{fs: fs}
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	if err := maybeInvalidKey(key); err != nil {
		return false, err
	}
	fi, err := l.fs.Stat(physicalKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

type localReader struct {
	objectReader io.ReadCloser
}

func (r localReader) WriteTo(writer io.Writer) (n int64, err error) {
	return storage.PipeIO(writer, r.objectReader)
}

func (r localReader) Close() error {
	return r.objectReader.Close()
}

func (r localReader) Read(p []byte) (n int, err error) {
	return r.objectReader.Read(p)
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := maybeInvalidKey(key); err != nil {
		return nil, err
	}
	t, err := l.fs.Open(physicalKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotExists.Wrap(err)
		}
		return nil, err
	}
	return localReader{objectReader: t}, nil
}

func (l *localFS) Head(ctx context.Context, key string) (storage.Attrs, error) {
	if err := maybeInvalidKey(key); err != nil {
		return storage.Attrs{}, err
	}
	fi, err := l.fs.Stat(physicalKey(key))
	if err != nil || fi.IsDir() {
		if err == nil || os.IsNotExist(err) {
			return storage.Attrs{}, status.ErrNotExists
		}
		return storage.Attrs{}, err
	}
	attrs := storage.Attrs{
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	meta, err := l.readMeta(key)
	if err != nil {
		return storage.Attrs{}, err
	}
	attrs.Metadata = meta
	return attrs, nil
}

func (l *localFS) readMeta(key string) (map[string]string, error) {
	f, err := l.fs.Open(metaKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var meta map[string]string
	if err := json.NewDecoder(f).Decode(&meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func metaKey(key string) string {
	return path.Join(nestedMetaName, physicalKey(key))
}

func stageKey(key string) string {
	return path.Join(nestedPutStageName, physicalKey(key))
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, opts storage.PutOptions) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	if opts.Exclusive {
		has, err := l.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists
		}
	}

	/* the staging area exists within the afero.Fs itself */
	staged := stageKey(key)
	if dir := filepath.Dir(staged); dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	target, err := l.fs.OpenFile(staged, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0600)
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	// if the reader implements WriterTo, use it
	if wt, ok := source.(io.WriterTo); ok {
		_, err = wt.WriteTo(target)
	} else {
		_, err = storage.PipeIO(target, source)
	}
	if err != nil {
		_ = target.Close()
		_ = l.fs.Remove(staged)
		return status.ErrStorageAPI.Wrap(err)
	}
	if err = target.Close(); err != nil {
		return err
	}

	if len(opts.Metadata) > 0 {
		if err = l.writeMeta(key, opts.Metadata); err != nil {
			_ = l.fs.Remove(staged)
			return err
		}
	}

	/* Rename() doesn't create directories automatically */
	destination := physicalKey(key)
	if dir := filepath.Dir(destination); dir != "" {
		if err = l.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	return l.fs.Rename(staged, destination)
}

func (l *localFS) writeMeta(key string, meta map[string]string) error {
	mk := metaKey(key)
	if err := l.fs.MkdirAll(filepath.Dir(mk), 0700); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	buf, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return afero.WriteFile(l.fs, mk, buf, 0600)
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	if err := l.fs.Remove(physicalKey(key)); err != nil && !os.IsNotExist(err) {
		return status.ErrStorageAPI.Wrap(err)
	}
	if err := l.fs.Remove(metaKey(key)); err != nil && !os.IsNotExist(err) {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (l *localFS) keys() ([]string, error) {
	const root = "."
	var res []string
	e := afero.Walk(l.fs, root, func(walked string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if walked == root {
			return nil
		}
		key := logicalKey(filepath.ToSlash(walked))
		if maybeInvalidKey(key) != nil {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		res = append(res, key)
		return nil
	})
	if e != nil {
		return nil, e
	}
	sort.Strings(res)
	return res, nil
}

func (l *localFS) KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error) {
	if delimiter != "" && delimiter != "/" {
		return nil, "", status.ErrNotSupported
	}
	if count <= 0 || count > storage.MaxKeysPerPage {
		count = storage.MaxKeysPerPage
	}
	all, err := l.keys()
	if err != nil {
		return nil, "", err
	}

	var page []string
	seen := make(map[string]bool)
	for _, key := range all {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry := key
		if delimiter != "" {
			rest := strings.TrimPrefix(key, prefix)
			if i := strings.Index(rest, delimiter); i >= 0 {
				entry = prefix + rest[:i+1]
			}
		}
		if seen[entry] {
			continue
		}
		seen[entry] = true
		if entry <= token {
			continue
		}
		page = append(page, entry)
	}
	sort.Strings(page)
	if len(page) > count {
		return page[:count], page[count-1], nil
	}
	return page, "", nil
}

func (l *localFS) Clear(ctx context.Context) error {
	return l.fs.RemoveAll("/")
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}
