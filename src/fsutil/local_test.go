package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docresearch/src/fsutil"
)

func TestStageKeepsExtension(t *testing.T) {
	dir := t.TempDir()
	store := fsutil.NewLocalFileStore(filepath.Join(dir, "uploads"))

	path, err := store.Stage("Report Final.PDF", []byte("data"))
	require.NoError(t, err)

	assert.Equal(t, ".pdf", filepath.Ext(path))
	assert.Equal(t, filepath.Join(dir, "uploads"), filepath.Dir(path))
	data, err := store.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	other, err := store.Stage("Report Final.PDF", []byte("data"))
	require.NoError(t, err)
	assert.NotEqual(t, path, other)
}

func TestRemoveMissingFile(t *testing.T) {
	store := fsutil.NewLocalFileStore(t.TempDir())

	assert.NoError(t, store.Remove(filepath.Join(t.TempDir(), "missing.txt")))
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "a.pdf"), []byte("a"), 0o600))
	store := fsutil.NewLocalFileStore(dir)

	files, err := store.ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "nested", "a.pdf"),
	}, files)

	single, err := store.ListFiles(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.txt")}, single)
}
