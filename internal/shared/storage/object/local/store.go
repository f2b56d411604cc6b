package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"polisense-backend/internal/shared/storage/object"
)

// Store implements ObjectStore on the local filesystem under baseDir.
type Store struct {
	baseDir string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) object.ObjectStore {
	return &Store{baseDir: baseDir}
}

// Put writes to a temp file next to the target and renames it into place.
func (s *Store) Put(ctx context.Context, obj object.Object, r io.Reader) (string, int64, error) {
	key, err := object.Key(obj)
	if err != nil {
		return "", 0, err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	fullPath := s.path(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".put-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp: %w", err)
	}
	size, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("write object: %w", errors.Join(copyErr, closeErr))
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("rename object: %w", err)
	}
	return key, size, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := object.ValidateKey(storageKey); err != nil {
		return nil, err
	}
	return os.Open(s.path(storageKey))
}

// Delete removes a stored object and its now-empty document directory.
// Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := object.ValidateKey(storageKey); err != nil {
		return err
	}

	fullPath := s.path(storageKey)
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove object: %w", err)
	}
	// Fails harmlessly when other files remain.
	_ = os.Remove(filepath.Dir(fullPath))
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

var _ object.ObjectStore = (*Store)(nil)
