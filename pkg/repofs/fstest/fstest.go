// Package fstest provides the shared conformance suite run against
// every repository filesystem implementation.
//
// Directory and symlink behavior is native on one backend and emulated
// on the other, so parity between them is verified here rather than
// assumed: a new adapter passes this suite or it does not ship.
package fstest

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CPU-JIA/Flotilla-sub008/internal/rand"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
)

// Factory builds a fresh, empty repository filesystem for one subtest.
type Factory func(t *testing.T) repofs.FS

// Run exercises the full contract against the implementation under test.
func Run(t *testing.T, factory Factory) {
	t.Run("ReadWriteRoundtrip", func(t *testing.T) { testReadWriteRoundtrip(t, factory(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory(t)) })
	t.Run("ReadMissing", func(t *testing.T) { testReadMissing(t, factory(t)) })
	t.Run("ReadDir", func(t *testing.T) { testReadDir(t, factory(t)) })
	t.Run("MkdirReadDirEmpty", func(t *testing.T) { testMkdirReadDirEmpty(t, factory(t)) })
	t.Run("MkdirExisting", func(t *testing.T) { testMkdirExisting(t, factory(t)) })
	t.Run("RmdirEmpty", func(t *testing.T) { testRmdirEmpty(t, factory(t)) })
	t.Run("Unlink", func(t *testing.T) { testUnlink(t, factory(t)) })
	t.Run("WriteUnderFile", func(t *testing.T) { testWriteUnderFile(t, factory(t)) })
	t.Run("Stat", func(t *testing.T) { testStat(t, factory(t)) })
	t.Run("StatRoot", func(t *testing.T) { testStatRoot(t, factory(t)) })
	t.Run("Symlink", func(t *testing.T) { testSymlink(t, factory(t)) })
	t.Run("UnlinkSymlinkKeepsTarget", func(t *testing.T) { testUnlinkSymlinkKeepsTarget(t, factory(t)) })
	t.Run("Traversal", func(t *testing.T) { testTraversal(t, factory(t)) })
}

func write(t *testing.T, fs repofs.FS, path string, payload []byte) {
	t.Helper()
	require.NoError(t, fs.WriteFile(context.Background(), path, bytes.NewReader(payload), 0644))
}

func read(t *testing.T, fs repofs.FS, path string) []byte {
	t.Helper()
	rdr, err := fs.ReadFile(context.Background(), path)
	require.NoError(t, err)
	defer rdr.Close()
	payload, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	return payload
}

func testReadWriteRoundtrip(t *testing.T, fs repofs.FS) {
	payload := rand.Bytes(4096)
	write(t, fs, "objects/ab/cdef0123456789", payload)
	assert.Equal(t, payload, read(t, fs, "objects/ab/cdef0123456789"))
}

func testOverwrite(t *testing.T, fs repofs.FS) {
	write(t, fs, "refs/heads/main", []byte("oldsha\n"))
	write(t, fs, "refs/heads/main", []byte("newsha\n"))
	// read-after-write: the new payload must be observed immediately
	assert.Equal(t, []byte("newsha\n"), read(t, fs, "refs/heads/main"))
}

func testReadMissing(t *testing.T, fs repofs.FS) {
	_, err := fs.ReadFile(context.Background(), "objects/no/suchobject")
	require.Error(t, err)
	assert.True(t, repofs.IsNotExist(err))
	assert.False(t, repofs.IsPathTraversal(err))
}

func testReadDir(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	require.NoError(t, fs.MkdirAll(ctx, "refs/heads"))
	write(t, fs, "refs/heads/main", []byte("sha1\n"))
	write(t, fs, "refs/heads/dev", []byte("sha2\n"))
	write(t, fs, "refs/tags/v1.0", []byte("sha3\n"))

	names, err := fs.ReadDir(ctx, "refs/heads")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "main"}, names)

	// one level only: files and direct subdirectory names, each once
	names, err = fs.ReadDir(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, []string{"heads", "tags"}, names)

	_, err = fs.ReadDir(ctx, "refs/nothere")
	require.Error(t, err)
	assert.True(t, repofs.IsNotExist(err))
}

func testMkdirReadDirEmpty(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	require.NoError(t, fs.Mkdir(ctx, "hooks"))
	names, err := fs.ReadDir(ctx, "hooks")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func testMkdirExisting(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	require.NoError(t, fs.Mkdir(ctx, "info"))
	err := fs.Mkdir(ctx, "info")
	require.Error(t, err)
	assert.True(t, repofs.IsExist(err))
}

func testRmdirEmpty(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	require.NoError(t, fs.Mkdir(ctx, "tmp"))
	require.NoError(t, fs.Rmdir(ctx, "tmp"))
	_, err := fs.ReadDir(ctx, "tmp")
	require.Error(t, err)
	assert.True(t, repofs.IsNotExist(err))
}

func testUnlink(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	write(t, fs, "objects/aa/bb", []byte("loose"))
	require.NoError(t, fs.Unlink(ctx, "objects/aa/bb"))

	_, err := fs.ReadFile(ctx, "objects/aa/bb")
	assert.True(t, repofs.IsNotExist(err))

	err = fs.Unlink(ctx, "objects/aa/bb")
	require.Error(t, err)
	assert.True(t, repofs.IsNotExist(err))
}

func testWriteUnderFile(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	write(t, fs, "refs/heads/main", []byte("sha\n"))

	// a regular file never doubles as a directory component
	err := fs.WriteFile(ctx, "refs/heads/main/nested", bytes.NewReader([]byte("blob")), 0644)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ENOTDIR))

	err = fs.MkdirAll(ctx, "refs/heads/main/nested")
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ENOTDIR))

	// the file stayed a plain file
	assert.Equal(t, []byte("sha\n"), read(t, fs, "refs/heads/main"))
	names, err := fs.ReadDir(ctx, "refs/heads")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names)
}

func testStat(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	payload := rand.Bytes(512)
	write(t, fs, "objects/ab/stat-me", payload)

	fi, err := fs.Stat(ctx, "objects/ab/stat-me")
	require.NoError(t, err)
	assert.True(t, fi.IsRegular())
	assert.False(t, fi.IsDir())
	assert.False(t, fi.IsSymlink())
	assert.EqualValues(t, len(payload), fi.Size())

	fi, err = fs.Stat(ctx, "objects/ab")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	_, err = fs.Stat(ctx, "objects/ab/missing")
	require.Error(t, err)
	assert.True(t, repofs.IsNotExist(err))
}

func testStatRoot(t *testing.T, fs repofs.FS) {
	// the empty relative path resolves to the repository root itself
	fi, err := fs.Stat(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func testSymlink(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	write(t, fs, "refs/heads/main", []byte("sha\n"))
	require.NoError(t, fs.Symlink(ctx, "heads/main", "refs/current"))

	target, err := fs.Readlink(ctx, "refs/current")
	require.NoError(t, err)
	assert.Equal(t, "heads/main", target)

	fi, err := fs.Lstat(ctx, "refs/current")
	require.NoError(t, err)
	assert.True(t, fi.IsSymlink(), "lstat must report the link, not the target")
	assert.False(t, fi.IsRegular())

	fi, err = fs.Stat(ctx, "refs/current")
	require.NoError(t, err)
	assert.True(t, fi.IsRegular(), "stat must follow the link")

	assert.Equal(t, []byte("sha\n"), read(t, fs, "refs/current"))

	// readlink on a regular file is an error, not an empty target
	_, err = fs.Readlink(ctx, "refs/heads/main")
	require.Error(t, err)
}

func testUnlinkSymlinkKeepsTarget(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	write(t, fs, "refs/heads/main", []byte("sha\n"))
	require.NoError(t, fs.Symlink(ctx, "heads/main", "refs/current"))
	require.NoError(t, fs.Unlink(ctx, "refs/current"))

	_, err := fs.Lstat(ctx, "refs/current")
	assert.True(t, repofs.IsNotExist(err))
	assert.Equal(t, []byte("sha\n"), read(t, fs, "refs/heads/main"))
}

func testTraversal(t *testing.T, fs repofs.FS) {
	ctx := context.Background()
	hostile := []string{
		"../../etc/passwd",
		"refs/../../escape",
		"..\\..\\windows\\system32",
		"refs/heads/../../../../../../tmp/x",
	}
	for _, p := range hostile {
		_, err := fs.ReadFile(ctx, p)
		require.Error(t, err, p)
		assert.True(t, repofs.IsPathTraversal(err), p)
		assert.False(t, repofs.IsNotExist(err), "traversal must never degrade to not-found: %s", p)

		err = fs.WriteFile(ctx, p, strings.NewReader("x"), 0644)
		assert.True(t, repofs.IsPathTraversal(err), p)

		err = fs.Unlink(ctx, p)
		assert.True(t, repofs.IsPathTraversal(err), p)

		_, err = fs.ReadDir(ctx, p)
		assert.True(t, repofs.IsPathTraversal(err), p)

		_, err = fs.Lstat(ctx, p)
		assert.True(t, repofs.IsPathTraversal(err), p)

		err = fs.Symlink(ctx, "target", p)
		assert.True(t, repofs.IsPathTraversal(err), p)
	}
}
