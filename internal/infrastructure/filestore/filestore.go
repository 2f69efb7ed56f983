// Package filestore keeps uploaded receipt files. The rest of the system only
// ever sees the opaque reference returned by Save.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidRef is returned for references that do not name a stored file.
var ErrInvalidRef = errors.New("invalid file reference")

// Store defines the interface for file storage operations
type Store interface {
	// Save stores the content and returns a reference and the byte count
	Save(originalName string, r io.Reader) (ref string, size int64, err error)

	// Open returns a reader for a stored file
	Open(ref string) (io.ReadCloser, error)

	// Delete removes a stored file. Deleting a missing file is not an error.
	Delete(ref string) error
}

// LocalStorage implements Store on the local filesystem
type LocalStorage struct {
	basePath string
}

// Compile-time check that LocalStorage implements Store
var _ Store = (*LocalStorage)(nil)

// NewLocalStorage creates a new LocalStorage, creating basePath if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes the content under a fresh uuid name, keeping the original extension
func (l *LocalStorage) Save(originalName string, r io.Reader) (string, int64, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	ref := uuid.NewString() + ext

	f, err := os.OpenFile(filepath.Join(l.basePath, ref), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("creating file: %w", err)
	}

	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("writing file: %w", err)
	}
	return ref, size, nil
}

// Open retrieves a file from local storage
func (l *LocalStorage) Open(ref string) (io.ReadCloser, error) {
	path, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(ref string) error {
	path, err := l.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// path rejects references that would escape basePath
func (l *LocalStorage) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(l.basePath, ref), nil
}
