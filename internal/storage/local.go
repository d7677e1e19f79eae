package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes uploads to a directory on disk and returns relative
// /uploads/ URLs. The server exposes the directory through a static file
// route.
type LocalStore struct {
	dir string
}

var _ UploadStore = (*LocalStore)(nil)

// NewLocalStore creates the uploads directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: creating uploads dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the file. The key is sanitized to its base name so a crafted
// key can never climb out of the uploads directory.
func (s *LocalStore) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	name := filepath.Base(key)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: writing %s: %w", name, err)
	}

	return "/uploads/" + name, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every file in the uploads dir whose name starts
// with prefix.
func (s *LocalStore) DeletePrefix(ctx context.Context, prefix string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("storage: reading uploads dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("storage: deleting %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Dir returns the directory uploads are written to, for the static file
// route in the server.
func (s *LocalStore) Dir() string {
	return s.dir
}
