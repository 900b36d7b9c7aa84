package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chartscan/breakoutscan/internal/atomicio"
)

// FileCache stores snapshot blobs as files under Dir, one file per key,
// written with atomicio so a crash mid-save never corrupts a prior
// snapshot (spec.md §4.1.3: "a crash during save must not corrupt the
// previously persisted snapshot").
type FileCache struct {
	Dir  string
	Perm os.FileMode
}

// NewFileCache returns a FileCache rooted at dir, creating it if necessary.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create cache dir: %w", err)
	}
	return &FileCache{Dir: dir, Perm: 0o644}, nil
}

func (f *FileCache) path(key string) string {
	return filepath.Join(f.Dir, key+".snapshot")
}

func (f *FileCache) metaPath(key string) string {
	return filepath.Join(f.Dir, key+".meta.json")
}

// Save writes blob to key's snapshot file.
func (f *FileCache) Save(_ context.Context, key string, blob []byte) error {
	perm := f.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := atomicio.WriteFile(f.path(key), blob, perm); err != nil {
		return fmt.Errorf("persistence: save snapshot %q: %w", key, err)
	}
	return nil
}

// Load reads key's snapshot file, returning (nil, false, nil) if absent.
func (f *FileCache) Load(_ context.Context, key string) ([]byte, bool, error) {
	data, ok, err := atomicio.ReadFile(f.path(key))
	if err != nil {
		return nil, false, fmt.Errorf("persistence: load snapshot %q: %w", key, err)
	}
	return data, ok, nil
}

// Clear removes key's snapshot and metadata files. Removing an absent file
// is not an error (spec.md §4.1.3: clearing an already-empty cache is a
// no-op, not a failure).
func (f *FileCache) Clear(_ context.Context, key string) error {
	if err := removeIfExists(f.path(key)); err != nil {
		return fmt.Errorf("persistence: clear snapshot %q: %w", key, err)
	}
	if err := removeIfExists(f.metaPath(key)); err != nil {
		return fmt.Errorf("persistence: clear metadata %q: %w", key, err)
	}
	return nil
}

// SaveMetadata writes a small human-readable JSON sidecar next to the
// binary snapshot (spec.md §6).
func (f *FileCache) SaveMetadata(_ context.Context, key string, metadata []byte) error {
	perm := f.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := atomicio.WriteFile(f.metaPath(key), metadata, perm); err != nil {
		return fmt.Errorf("persistence: save metadata %q: %w", key, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
