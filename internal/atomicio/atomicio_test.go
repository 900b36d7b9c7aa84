package atomicio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "snapshot.bin")
	content := []byte("detector snapshot payload")

	require.NoError(t, WriteFile(target, content, 0o644))

	got, ok, err := ReadFile(target)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, content, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp file")
}

func TestWriteFileOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "snapshot.bin")

	require.NoError(t, WriteFile(target, []byte("v1"), 0o644))
	require.NoError(t, WriteFile(target, []byte("v2"), 0o644))

	got, ok, err := ReadFile(target)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)
}

func TestReadFileMissingIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	got, ok, err := ReadFile(filepath.Join(dir, "absent.bin"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestWriteFileInvalidDir(t *testing.T) {
	err := WriteFile("/nonexistent/dir/file.bin", []byte("x"), 0o644)
	assert.Error(t, err)
}
