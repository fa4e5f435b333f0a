package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDigestMissing(t *testing.T) {
	d, ok, err := FileDigest(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, d)
}

func TestFileDigestStable(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o644))

	d1, ok, err := FileDigest(p)
	require.NoError(t, err)
	require.True(t, ok)

	d2, ok, err := FileDigest(p)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, d1, d2)
}

func TestFileDigestChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(p, []byte("a"), 0o644))
	d1, _, err := FileDigest(p)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte("b"), 0o644))
	d2, _, err := FileDigest(p)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestDependencyDigestOrderIndependent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("a-content"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b-content"), 0o644))

	d1, missing1, err := DependencyDigest(nil, []string{a, b})
	require.NoError(t, err)
	assert.False(t, missing1)

	d2, missing2, err := DependencyDigest(nil, []string{b, a})
	require.NoError(t, err)
	assert.False(t, missing2)

	assert.Equal(t, d1, d2)
}

func TestDependencyDigestEmptySet(t *testing.T) {
	d, missing, err := DependencyDigest(nil, nil)
	require.NoError(t, err)
	assert.False(t, missing)
	assert.Equal(t, EmptySetDigest, d)
}

func TestDependencyDigestMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(a, []byte("a-content"), 0o644))
	missingPath := filepath.Join(dir, "missing")

	withMissing, anyMissing, err := DependencyDigest(nil, []string{a, missingPath})
	require.NoError(t, err)
	assert.True(t, anyMissing)

	withoutMissing, anyMissing2, err := DependencyDigest(nil, []string{a})
	require.NoError(t, err)
	assert.False(t, anyMissing2)

	// Missing files are dropped, so presence of a missing path doesn't
	// change the resulting digest.
	assert.Equal(t, withoutMissing, withMissing)
}

func TestDigestOfListOrderIndependent(t *testing.T) {
	d1 := DigestOfList([]string{"x", "y", "z"})
	d2 := DigestOfList([]string{"z", "x", "y"})
	assert.Equal(t, d1, d2)
}

func TestStringDigestDeterministic(t *testing.T) {
	assert.Equal(t, StringDigest("v1"), StringDigest("v1"))
	assert.NotEqual(t, StringDigest("v1"), StringDigest("v2"))
}
