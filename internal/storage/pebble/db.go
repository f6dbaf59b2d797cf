package pebblestore

import (
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each committed write.
	FsyncModeAlways
	// FsyncModeInterval enables group-commit by allowing Pebble to coalesce
	// WAL syncs for writes within the configured interval.
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application. Pebble
	// may still sync based on its own policies.
	FsyncModeNever
)

// Options configures the Pebble store wrapper.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
}

// DB wraps a Pebble database instance with a fixed fsync policy.
type DB struct {
	inner     *pebble.DB
	writeSync bool
}

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	po := &pebble.Options{}
	switch opts.Fsync {
	case FsyncModeAlways:
		// Sync is requested per write; no WALMinSyncInterval.
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return opts.FsyncInterval }
	case FsyncModeNever:
	default:
		// Small group-commit window as a reasonable latency/durability default.
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner, writeSync: opts.Fsync == FsyncModeAlways}, nil
}

// Close closes the Pebble database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// Get copies the value for the given key. The second return reports whether
// the key was present.
func (db *DB) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = closer.Close() }()
	return append([]byte(nil), val...), true, nil
}

// Set writes a key to a value under the configured fsync policy.
func (db *DB) Set(key, value []byte) error {
	return db.inner.Set(key, value, db.writeOpts())
}

// Delete removes a key under the configured fsync policy.
func (db *DB) Delete(key []byte) error {
	return db.inner.Delete(key, db.writeOpts())
}

// NewIter creates a raw Pebble iterator with the provided options.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}

func (db *DB) writeOpts() *pebble.WriteOptions {
	if db.writeSync {
		return pebble.Sync
	}
	return pebble.NoSync
}
