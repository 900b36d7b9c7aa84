// Package atomicio provides crash-safe file writes for the detector's
// persistent cache. A reader must never observe a partially written file.
package atomicio

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile writes data to filename atomically using a temp-then-rename
// pattern: the temp file is written and fsynced in the target directory,
// then renamed over filename. A crash before the rename leaves filename
// untouched; a crash after leaves it fully written.
func WriteFile(filename string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("atomicio: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("atomicio: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("atomicio: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("atomicio: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("atomicio: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("atomicio: rename temp file: %w", err)
	}
	return nil
}

// ReadFile reads filename and returns (nil, false, nil) if it does not
// exist, so callers can treat "no cache yet" and "cache absent" the same
// way without a type-switch on the error.
func ReadFile(filename string) ([]byte, bool, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("atomicio: read file: %w", err)
	}
	return data, true, nil
}
