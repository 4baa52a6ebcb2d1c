// Package persistence provides atomic file persistence primitives shared by
// the record store and the index snapshots.
//
// Every durable write follows the same discipline: write to a temp file in
// the target directory, fsync, close, atomically rename over the target,
// then fsync the directory. A reader never observes a partial file.
package persistence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SaveToFile atomically writes the output of write to filename.
//
// On any failure the target file is left untouched and the temp file is
// removed.
func SaveToFile(filename string, write func(w io.Writer) error) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: failed to create directory %s: %w", dir, err)
	}

	// Temp file in the same directory so the rename is atomic.
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persistence: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persistence: failed to write %s: %w", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persistence: failed to sync %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: failed to close %s: %w", filename, err)
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("persistence: failed to rename %s: %w", filename, err)
	}

	// Best-effort: fsync directory so the rename itself is durable.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}

// LoadFromFile opens filename and passes the reader to read.
func LoadFromFile(filename string, read func(r io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return read(f)
}
