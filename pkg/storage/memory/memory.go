// Package memory provides an in-memory storage backend, mainly for tests
// and short-lived embedding.
package memory

import (
	"context"
	"sync"
)

// Store keeps snapshots in a process-local map.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Read returns the bytes stored under key.
func (s *Store) Read(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Write stores data under key.
func (s *Store) Write(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

// Len returns the number of stored slots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
