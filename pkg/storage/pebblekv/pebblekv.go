// Package pebblekv provides a storage backend persisting slots in a local
// Pebble database.
package pebblekv

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/seqstore/seqstore/internal/storage/pebble"
)

// Keyspace:
//   slot/{derived key}  -> snapshot bytes

var slotPrefix = []byte("slot/")

// FsyncMode re-exports the wrapper's durability modes.
type FsyncMode = pebblestore.FsyncMode

const (
	FsyncModeAlways   = pebblestore.FsyncModeAlways
	FsyncModeInterval = pebblestore.FsyncModeInterval
	FsyncModeNever    = pebblestore.FsyncModeNever
)

// Options configures the Pebble-backed store.
type Options struct {
	// DataDir is the Pebble database directory.
	DataDir string
	// Fsync determines WAL sync behavior; defaults to a small group-commit
	// window when unspecified.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
}

// Store persists snapshot slots in Pebble.
type Store struct {
	db *pebblestore.DB
}

// Open creates or opens the backing database.
func Open(opts Options) (*Store, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the backing database.
func (s *Store) Close() error { return s.db.Close() }

// Read returns the snapshot stored under key.
func (s *Store) Read(_ context.Context, key string) ([]byte, bool, error) {
	return s.db.Get(slotKey(key))
}

// Write stores the snapshot under key.
func (s *Store) Write(_ context.Context, key string, data []byte) error {
	return s.db.Set(slotKey(key), data)
}

// Slots lists all persisted slot keys, for inspection tooling.
func (s *Store) Slots() ([]string, error) {
	hi := append(append([]byte{}, slotPrefix...), 0xFF)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: slotPrefix, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	var out []string
	for ok := it.First(); ok; ok = it.Next() {
		k := it.Key()
		if len(k) > len(slotPrefix) {
			out = append(out, string(k[len(slotPrefix):]))
		}
	}
	return out, nil
}

func slotKey(key string) []byte {
	b := make([]byte, 0, len(slotPrefix)+len(key))
	b = append(b, slotPrefix...)
	b = append(b, key...)
	return b
}
