package filestore

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	// Arrange
	dir := filepath.Join(t.TempDir(), "receipts")
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	// Act
	ref, size, err := store.Save("Lunch Receipt.JPG", strings.NewReader("image-bytes"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
	assert.True(t, strings.HasSuffix(ref, ".jpg"))
	assert.NotContains(t, ref, "Lunch")

	rc, err := store.Open(ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	require.NoError(t, store.Delete(ref))
	_, err = os.Stat(filepath.Join(dir, ref))
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is fine
	assert.NoError(t, store.Delete(ref))
}

func TestLocalStorage_UniqueRefs(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	a, _, err := store.Save("r.png", strings.NewReader("a"))
	require.NoError(t, err)
	b, _, err := store.Save("r.png", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLocalStorage_RejectsPathTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, ref := range []string{"", "..", "../etc/passwd", "a/b.jpg"} {
		_, err := store.Open(ref)
		assert.ErrorIs(t, err, ErrInvalidRef, "ref %q", ref)
		assert.ErrorIs(t, store.Delete(ref), ErrInvalidRef, "ref %q", ref)
	}
}
