package safepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	const root = "/data/repo-42"

	resolved := map[string]string{
		"refs/heads/main":        "/data/repo-42/refs/heads/main",
		"objects/ab/cd":          "/data/repo-42/objects/ab/cd",
		"":                       "/data/repo-42",
		".":                      "/data/repo-42",
		"/":                      "/data/repo-42",
		"/refs/heads/main":       "/data/repo-42/refs/heads/main",
		"refs//heads///main":     "/data/repo-42/refs/heads/main",
		"./refs/./heads/main":    "/data/repo-42/refs/heads/main",
		"refs/heads/../tags/v1":  "/data/repo-42/refs/tags/v1",
		"refs\\heads\\main":      "/data/repo-42/refs/heads/main",
		"refs/hea\x00ds/main":    "/data/repo-42/refs/heads/main",
		"a/..":                   "/data/repo-42",
		"refs/heads/main/":       "/data/repo-42/refs/heads/main",
	}
	for in, want := range resolved {
		got, err := Resolve(root, in)
		require.NoError(t, err, "%q", in)
		assert.Equal(t, want, got, "%q", in)
	}

	rejected := []string{
		"../../etc/passwd",
		"..",
		"../repo-43/refs/heads/main",
		"refs/../../escape",
		"..\\..\\etc\\passwd",
		"a/b/../../../../x",
		"/../../etc/passwd",
	}
	for _, in := range rejected {
		_, err := Resolve(root, in)
		assert.ErrorIs(t, err, ErrPathTraversal, "%q", in)
	}
}

func TestResolveIdempotent(t *testing.T) {
	const root = "/data/repo-42"
	for _, in := range []string{"refs/heads/main", "objects/ab/cd", "", "a/../b"} {
		once, err := Resolve(root, in)
		require.NoError(t, err)
		twice, err := Resolve(root, once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "%q", in)
	}
}

func TestResolveUncleanRoot(t *testing.T) {
	got, err := Resolve("/data/repo-42/", "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, "/data/repo-42/refs/heads/main", got)
}

func TestResolveKey(t *testing.T) {
	resolved := map[string]string{
		"refs/heads/main":       "repos/42/refs/heads/main",
		"":                      "repos/42",
		"/refs/heads/main":      "repos/42/refs/heads/main",
		"refs//heads/./main":    "repos/42/refs/heads/main",
		"refs\\heads\\main":     "repos/42/refs/heads/main",
		"refs/heads/../tags/v1": "repos/42/refs/tags/v1",
	}
	for in, want := range resolved {
		got, err := ResolveKey("repos/42", in)
		require.NoError(t, err, "%q", in)
		assert.Equal(t, want, got, "%q", in)
	}

	for _, in := range []string{"../43/refs", "..", "refs/../../../x"} {
		_, err := ResolveKey("repos/42", in)
		assert.ErrorIs(t, err, ErrPathTraversal, "%q", in)
	}
}

func TestResolveKeyEmptyPrefix(t *testing.T) {
	got, err := ResolveKey("", "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main", got)

	_, err = ResolveKey("", "../escape")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestSiblingPrefixIsNotContained(t *testing.T) {
	// "/data/repo-421" shares a string prefix with "/data/repo-42" but
	// is not inside it
	_, err := Resolve("/data/repo-42", "../repo-421/refs")
	assert.ErrorIs(t, err, ErrPathTraversal)
}
