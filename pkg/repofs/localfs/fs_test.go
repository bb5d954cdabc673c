package localfs

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs/fstest"
)

func TestContract(t *testing.T) {
	fstest.Run(t, func(t *testing.T) repofs.FS {
		fs, err := New(t.TempDir())
		require.NoError(t, err)
		return fs
	})
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not", "yet", "there")
	fs, err := New(root)
	require.NoError(t, err)

	fi, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.True(t, strings.HasSuffix(fs.String(), root))
}

func TestWritesStayUnderRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "repo")
	fs, err := New(root)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.WriteFile(ctx, "objects/ab/cd", strings.NewReader("blob"), 0644))

	// the payload landed below the root, nowhere else
	payload, err := ioutil.ReadFile(filepath.Join(root, "objects", "ab", "cd"))
	require.NoError(t, err)
	assert.Equal(t, "blob", string(payload))

	err = fs.WriteFile(ctx, "../outside", strings.NewReader("escape"), 0644)
	require.Error(t, err)
	_, err = os.Stat(filepath.Join(base, "outside"))
	assert.True(t, os.IsNotExist(err))
}

func TestNativeSymlinkOnDisk(t *testing.T) {
	root := t.TempDir()
	fs, err := New(root)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.WriteFile(ctx, "refs/heads/main", strings.NewReader("sha\n"), 0644))
	require.NoError(t, fs.Symlink(ctx, "heads/main", "refs/current"))

	// a real symlink exists on disk, target stored verbatim
	target, err := os.Readlink(filepath.Join(root, "refs", "current"))
	require.NoError(t, err)
	assert.Equal(t, "heads/main", target)
}

func TestRmdirNonEmpty(t *testing.T) {
	fs, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.WriteFile(ctx, "refs/heads/main", strings.NewReader("sha\n"), 0644))

	// the native backend refuses to remove a non-empty directory
	err = fs.Rmdir(ctx, "refs")
	require.Error(t, err)

	names, err := fs.ReadDir(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, []string{"heads"}, names)
}

// abortingReader delivers its payload, then fails instead of EOF, the
// way a client disconnect surfaces mid-stream
type abortingReader struct {
	payload io.Reader
	err     error
}

func (a *abortingReader) Read(p []byte) (int, error) {
	n, err := a.payload.Read(p)
	if err == io.EOF {
		return n, a.err
	}
	return n, err
}

func TestWriteFileAbortLeavesNoPartial(t *testing.T) {
	root := t.TempDir()
	fs, err := New(root)
	require.NoError(t, err)

	ctx := context.Background()
	boom := errors.New("client went away")
	err = fs.WriteFile(ctx, "objects/ab/partial",
		&abortingReader{payload: strings.NewReader(strings.Repeat("x", 32)), err: boom}, 0644)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	// nothing observable at the final path, no staging residue either
	_, err = os.Stat(filepath.Join(root, "objects", "ab", "partial"))
	assert.True(t, os.IsNotExist(err))
	names, err := fs.ReadDir(ctx, "objects/ab")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestWriteFileAbortKeepsCommitted(t *testing.T) {
	root := t.TempDir()
	fs, err := New(root)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.WriteFile(ctx, "refs/heads/main", strings.NewReader("old-sha\n"), 0644))

	boom := errors.New("client went away")
	err = fs.WriteFile(ctx, "refs/heads/main",
		&abortingReader{payload: strings.NewReader("new"), err: boom}, 0644)
	require.Error(t, err)

	// the committed payload survives the aborted overwrite untouched
	payload, err := ioutil.ReadFile(filepath.Join(root, "refs", "heads", "main"))
	require.NoError(t, err)
	assert.Equal(t, "old-sha\n", string(payload))
}

func TestWriteFilePerm(t *testing.T) {
	root := t.TempDir()
	fs, err := New(root)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.WriteFile(ctx, "hooks/post-receive", strings.NewReader("#!/bin/sh\n"), 0755))

	fi, err := os.Stat(filepath.Join(root, "hooks", "post-receive"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), fi.Mode().Perm())

	// the zero perm defaults to a plain file mode
	require.NoError(t, fs.WriteFile(ctx, "refs/heads/main", strings.NewReader("sha\n"), 0))
	fi, err = os.Stat(filepath.Join(root, "refs", "heads", "main"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), fi.Mode().Perm())
}
