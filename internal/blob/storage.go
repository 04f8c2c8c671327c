// Package blob stores immutable JSON documents on the local filesystem, in
// Google Cloud Storage or in S3. Objects are create-only: a second write to
// the same key fails with ErrObjectExists.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrObjectExists is returned when a key is written twice.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned when a key has never been written.
	ErrObjectNotFound = errors.New("object not found")
)

// StorageClient abstracts create-only blob storage. kind groups objects
// (for example "submissions") and id names one object within it.
type StorageClient interface {
	Put(ctx context.Context, kind, id string, data []byte) error
	Get(ctx context.Context, kind, id string) ([]byte, error)
}

func objectKey(kind, id string) string {
	return kind + "/" + id + ".json"
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(kind, id string) string {
	return filepath.Join(s.BaseDir, kind, id+".json")
}

// Put writes to a temp file and hard-links it into place, so readers never
// see a partial object and an existing object is never replaced.
func (s *LocalStorage) Put(ctx context.Context, kind, id string, data []byte) error {
	path := s.path(kind, id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", objectKey(kind, id), ErrObjectExists)
		}
		return fmt.Errorf("link %s: %w", path, err)
	}
	return nil
}

// Get reads an object.
func (s *LocalStorage) Get(ctx context.Context, kind, id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(kind, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", objectKey(kind, id), ErrObjectNotFound)
	}
	return data, err
}
