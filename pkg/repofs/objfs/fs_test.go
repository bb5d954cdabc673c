package objfs

import (
	"context"
	"errors"
	"io/fs"
	"io/ioutil"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs/fstest"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage"
	storagelocal "github.com/CPU-JIA/Flotilla-sub008/pkg/storage/localfs"
)

func setupFS(t testing.TB) (repofs.FS, storage.Store) {
	t.Helper()

	bs := storagelocal.New(afero.NewMemMapFs())
	ofs, err := New(bs, "repos/42")
	require.NoError(t, err)
	return ofs, bs
}

func write(t *testing.T, ofs repofs.FS, path, payload string) {
	t.Helper()
	require.NoError(t, ofs.WriteFile(context.Background(), path, strings.NewReader(payload), 0644))
}

func read(t *testing.T, ofs repofs.FS, path string) string {
	t.Helper()
	rdr, err := ofs.ReadFile(context.Background(), path)
	require.NoError(t, err)
	defer rdr.Close()
	payload, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	return string(payload)
}

func TestContract(t *testing.T) {
	fstest.Run(t, func(t *testing.T) repofs.FS {
		ofs, _ := setupFS(t)
		return ofs
	})
}

func TestKeyLayout(t *testing.T) {
	ofs, bs := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")

	// paths land under the repository prefix, nowhere else
	has, err := bs.Has(ctx, "repos/42/refs/heads/main")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = bs.Has(ctx, "refs/heads/main")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPrefixIsolation(t *testing.T) {
	bs := storagelocal.New(afero.NewMemMapFs())
	a, err := New(bs, "repos/1")
	require.NoError(t, err)
	b, err := New(bs, "repos/2")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.WriteFile(ctx, "refs/heads/main", strings.NewReader("a"), 0644))

	_, err = b.ReadFile(ctx, "refs/heads/main")
	require.Error(t, err)
	assert.True(t, repofs.IsNotExist(err))
}

func TestMkdirParentMustExist(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	err := ofs.Mkdir(ctx, "a/b/c")
	require.Error(t, err)
	assert.True(t, repofs.IsNotExist(err))

	require.NoError(t, ofs.MkdirAll(ctx, "a/b"))
	require.NoError(t, ofs.Mkdir(ctx, "a/b/c"))
}

func TestMkdirAllMakesChainListable(t *testing.T) {
	ofs, bs := setupFS(t)
	ctx := context.Background()

	require.NoError(t, ofs.MkdirAll(ctx, "a/b/c"))

	// one marker at the leaf, none for the intermediates
	has, err := bs.Has(ctx, "repos/42/a/b/c/")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = bs.Has(ctx, "repos/42/a/b/")
	require.NoError(t, err)
	assert.False(t, has)

	// every intermediate is listable through prefix reduction
	names, err := ofs.ReadDir(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
	names, err = ofs.ReadDir(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
	names, err = ofs.ReadDir(ctx, "a/b/c")
	require.NoError(t, err)
	assert.Empty(t, names)

	// idempotent
	require.NoError(t, ofs.MkdirAll(ctx, "a/b/c"))
	require.NoError(t, ofs.MkdirAll(ctx, "a/b"))
}

func TestMkdirAllOverFile(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	err := ofs.MkdirAll(ctx, "refs/heads/main")
	require.Error(t, err)
	var perr *fs.PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, syscall.ENOTDIR, perr.Err)
}

func TestRmdirIsRecursive(t *testing.T) {
	// the flat key space has no emptiness notion: rmdir takes the subtree
	ofs, bs := setupFS(t)
	ctx := context.Background()

	require.NoError(t, ofs.MkdirAll(ctx, "refs/heads"))
	write(t, ofs, "refs/heads/main", "sha1\n")
	write(t, ofs, "refs/heads/dev", "sha2\n")
	write(t, ofs, "refs/tags/v1", "sha3\n")

	require.NoError(t, ofs.Rmdir(ctx, "refs/heads"))

	_, err := ofs.ReadDir(ctx, "refs/heads")
	assert.True(t, repofs.IsNotExist(err))
	assert.Equal(t, "sha3\n", read(t, ofs, "refs/tags/v1"))

	// marker gone as well
	has, err := bs.Has(ctx, "repos/42/refs/heads/")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRmdirOnFile(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	err := ofs.Rmdir(ctx, "refs/heads/main")
	require.Error(t, err)
	var perr *fs.PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, syscall.ENOTDIR, perr.Err)
}

func TestUnlinkOnDirectory(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	err := ofs.Unlink(ctx, "refs/heads")
	require.Error(t, err)
	var perr *fs.PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, syscall.EISDIR, perr.Err)
}

func TestReadFileOnDirectory(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	_, err := ofs.ReadFile(ctx, "refs/heads")
	require.Error(t, err)
	var perr *fs.PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, syscall.EISDIR, perr.Err)
}

func TestWriteFileOverDirectory(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	err := ofs.WriteFile(ctx, "refs/heads", strings.NewReader("x"), 0644)
	require.Error(t, err)
	var perr *fs.PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, syscall.EISDIR, perr.Err)
}

func TestStatSynthesizedModes(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	require.NoError(t, ofs.Symlink(ctx, "heads/main", "refs/current"))

	fi, err := ofs.Stat(ctx, "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0644), fi.Mode())
	assert.EqualValues(t, 4, fi.Size())
	assert.False(t, fi.ModTime().IsZero())

	fi, err = ofs.Lstat(ctx, "refs/current")
	require.NoError(t, err)
	assert.Equal(t, fs.ModeSymlink|fs.FileMode(0777), fi.Mode())

	fi, err = ofs.Stat(ctx, "refs/heads")
	require.NoError(t, err)
	assert.Equal(t, fs.ModeDir|fs.FileMode(0755), fi.Mode())
}

func TestSymlinkChain(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	require.NoError(t, ofs.Symlink(ctx, "heads/main", "refs/one"))
	require.NoError(t, ofs.Symlink(ctx, "one", "refs/two"))
	require.NoError(t, ofs.Symlink(ctx, "refs/two", "three"))

	assert.Equal(t, "sha\n", read(t, ofs, "three"))

	fi, err := ofs.Stat(ctx, "three")
	require.NoError(t, err)
	assert.True(t, fi.IsRegular())
}

func TestSymlinkRootRelativeTarget(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	// a leading separator makes the target repository-root-relative
	require.NoError(t, ofs.Symlink(ctx, "/refs/heads/main", "deep/down/link"))
	assert.Equal(t, "sha\n", read(t, ofs, "deep/down/link"))
}

func TestSymlinkLoop(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	require.NoError(t, ofs.Symlink(ctx, "b", "a"))
	require.NoError(t, ofs.Symlink(ctx, "a", "b"))

	_, err := ofs.ReadFile(ctx, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many levels of symbolic links")

	_, err = ofs.Stat(ctx, "a")
	require.Error(t, err)
}

func TestSymlinkDangling(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	require.NoError(t, ofs.Symlink(ctx, "nothere", "dangling"))

	// lstat sees the link itself
	fi, err := ofs.Lstat(ctx, "dangling")
	require.NoError(t, err)
	assert.True(t, fi.IsSymlink())

	// stat and read follow it into nothing
	_, err = ofs.Stat(ctx, "dangling")
	assert.True(t, repofs.IsNotExist(err))
	_, err = ofs.ReadFile(ctx, "dangling")
	assert.True(t, repofs.IsNotExist(err))

	target, err := ofs.Readlink(ctx, "dangling")
	require.NoError(t, err)
	assert.Equal(t, "nothere", target)
}

func TestSymlinkOverExisting(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	err := ofs.Symlink(ctx, "elsewhere", "refs/heads/main")
	require.Error(t, err)
	assert.True(t, repofs.IsExist(err))

	err = ofs.Symlink(ctx, "elsewhere", "refs/heads")
	require.Error(t, err)
	assert.True(t, repofs.IsExist(err))
}

func TestReadlinkOnRegularFile(t *testing.T) {
	ofs, _ := setupFS(t)
	ctx := context.Background()

	write(t, ofs, "refs/heads/main", "sha\n")
	_, err := ofs.Readlink(ctx, "refs/heads/main")
	require.Error(t, err)
	var perr *fs.PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, syscall.EINVAL, perr.Err)
}

func TestSymlinkTagSurvivesCaseFolding(t *testing.T) {
	// some backends title-case metadata keys; the tag must still be seen
	assert.True(t, isSymlinkAttrs(storage.Attrs{Metadata: map[string]string{"Flotilla-Symlink": "1"}}))
	assert.True(t, isSymlinkAttrs(storage.Attrs{Metadata: map[string]string{"flotilla-symlink": "1"}}))
	assert.False(t, isSymlinkAttrs(storage.Attrs{Metadata: map[string]string{"unrelated": "1"}}))
	assert.False(t, isSymlinkAttrs(storage.Attrs{}))
}

func TestString(t *testing.T) {
	ofs, _ := setupFS(t)
	assert.True(t, strings.HasPrefix(ofs.String(), "objfs@"))
	assert.True(t, strings.HasSuffix(ofs.String(), "/repos/42"))
}
