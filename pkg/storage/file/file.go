// Package file provides a storage backend that persists each slot as one
// JSON file on disk.
package file

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists one file per storage key under a base directory. Derived
// keys contain '/' and ':' so file names are the url-safe base64 of the key.
type Store struct {
	dir string
}

// New creates the base directory if needed and returns a Store.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("file: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Read returns the contents of the slot file for key.
func (s *Store) Read(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Write replaces the slot file for key atomically (write to temp, rename).
func (s *Store) Write(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".slot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *Store) path(key string) string {
	name := base64.URLEncoding.EncodeToString([]byte(key)) + ".json"
	return filepath.Join(s.dir, name)
}
