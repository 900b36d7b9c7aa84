package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCacheSaveLoadRoundTrip(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Save(context.Background(), "AAPL_tw10", []byte("snapshot-bytes")))

	data, ok, err := cache.Load(context.Background(), "AAPL_tw10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("snapshot-bytes"), data)
}

func TestFileCacheSaveWritesAtomicallyWithNoLeftoverTempFile(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Save(context.Background(), "AAPL", []byte("v1")))
	require.NoError(t, cache.Save(context.Background(), "AAPL", []byte("v2")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover .tmp- file from the write-then-rename")
	assert.Equal(t, "AAPL.snapshot", entries[0].Name())

	data, ok, err := cache.Load(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), data)
}

func TestFileCacheLoadMissingKeyIsNotAnError(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	data, ok, err := cache.Load(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestFileCacheSaveMetadataWritesSidecarJSON(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, cache.SaveMetadata(context.Background(), "AAPL", []byte(`{"symbol":"AAPL"}`)))

	data, err := os.ReadFile(filepath.Join(dir, "AAPL.meta.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"AAPL"}`, string(data))
}

func TestFileCacheClearOnAbsentKeyIsNoOp(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, cache.Clear(context.Background(), "NEVER_SAVED"))
}

func TestFileCacheClearRemovesSnapshotAndMetadata(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Save(context.Background(), "AAPL", []byte("blob")))
	require.NoError(t, cache.SaveMetadata(context.Background(), "AAPL", []byte(`{}`)))

	require.NoError(t, cache.Clear(context.Background(), "AAPL"))

	_, ok, err := cache.Load(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "AAPL.meta.json"))
	assert.True(t, os.IsNotExist(err))
}
