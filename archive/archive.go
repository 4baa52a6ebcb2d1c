// Package archive stores off-box copies of snapshot files and enrolled
// images. Archiving is best effort: the local snapshot on disk remains the
// source of truth, and an archive failure never fails the operation that
// produced the artifact.
package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// Archiver uploads and retrieves archived artifacts by name.
type Archiver interface {
	// Put uploads data under name, overwriting any previous version.
	Put(ctx context.Context, name string, data []byte) error

	// PutFile uploads a local file under name.
	PutFile(ctx context.Context, name, path string) error

	// Get retrieves the artifact named name.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns archived artifact names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Dir is a filesystem Archiver for single-host deployments; artifacts land
// under a root directory.
type Dir struct {
	root string
}

var _ Archiver = (*Dir)(nil)

// NewDir creates a filesystem archiver rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Put implements Archiver.
func (d *Dir) Put(_ context.Context, name string, data []byte) error {
	target := filepath.Join(d.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

// PutFile implements Archiver.
func (d *Dir) PutFile(ctx context.Context, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return d.Put(ctx, name, data)
}

// Get implements Archiver.
func (d *Dir) Get(_ context.Context, name string) ([]byte, error) {
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// List implements Archiver.
func (d *Dir) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == d.root {
				return filepath.SkipAll
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if prefix == "" || len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
