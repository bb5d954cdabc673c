// Package safepath turns untrusted repository-relative paths into
// verified-safe absolute paths or storage keys.
//
// Untrusted paths come straight off the wire: they may contain ..
// segments, embedded null bytes, backslashes, or absolute-looking
// leading separators. Resolution is purely textual; symbolic links on
// disk are not dereferenced here.
package safepath

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/errors"
)

// ErrPathTraversal is returned when a path would escape the repository
// root. It is a security event: callers must keep it distinct from
// not-found errors so rejections stay auditable.
var ErrPathTraversal = errors.New("path escapes repository root")

// Resolve joins an untrusted relative path onto an absolute repository
// root and returns the canonical absolute result, guaranteed to be the
// root itself or a descendant of it.
//
// A path with a leading separator is treated as root-relative, not as
// filesystem-absolute; the one exception is a path already resolved
// against the same root, which resolves to itself (Resolve is
// idempotent over its own output).
func Resolve(root, relativePath string) (string, error) {
	rootAbs := filepath.Clean(root)
	sep := string(filepath.Separator)

	cleaned := normalize(relativePath)

	// an already-resolved path stays put
	if strings.HasPrefix(cleaned, "/") {
		abs := filepath.Clean(filepath.FromSlash(cleaned))
		if contains(rootAbs, sep, abs) {
			return abs, nil
		}
	}

	joined := filepath.Join(rootAbs, filepath.FromSlash(strings.TrimLeft(cleaned, "/")))
	if contains(rootAbs, sep, joined) {
		return joined, nil
	}
	return "", ErrPathTraversal
}

// contains reports whether candidate equals root or is a descendant of it.
// Both arguments are Clean paths.
func contains(root, sep, candidate string) bool {
	if candidate == root {
		return true
	}
	if root == sep { // degenerate root
		return strings.HasPrefix(candidate, sep)
	}
	return strings.HasPrefix(candidate, root+sep)
}

// ResolveKey is the object-key flavor of Resolve: it joins an untrusted
// relative path onto a key prefix and returns the canonical
// slash-separated key, guaranteed not to escape the prefix. An empty
// relative path yields the prefix itself.
func ResolveKey(prefix, relativePath string) (string, error) {
	rootKey := path.Join("/", prefix)

	cleaned := strings.TrimLeft(normalize(relativePath), "/")
	joined := path.Join(rootKey, cleaned)
	if !contains(rootKey, "/", joined) {
		return "", ErrPathTraversal
	}
	return strings.TrimPrefix(joined, "/"), nil
}

// normalize strips null bytes (defending against string truncation in
// lower-level file APIs) and folds backslashes into forward slashes so
// separator conventions canonicalize identically on all platforms.
func normalize(p string) string {
	p = strings.ReplaceAll(p, "\x00", "")
	return strings.ReplaceAll(p, "\\", "/")
}
