// Package redis provides a storage backend persisting slots in Redis, for
// clients that want snapshots to survive host loss.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Options configures the Redis-backed store.
type Options struct {
	// Addr is the host:port of the Redis server.
	Addr string
	// Password is optional.
	Password string
	// DB selects the logical database.
	DB int
	// KeyPrefix namespaces slot keys; defaults to "seqstore:".
	KeyPrefix string
}

// Store persists snapshot slots as plain Redis strings.
type Store struct {
	client *goredis.Client
	prefix string
}

// New returns a Store over a new Redis client. The connection is lazy; use
// Ping to verify reachability.
func New(opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis: Options.Addr is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "seqstore:"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Store{client: client, prefix: prefix}, nil
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error { return s.client.Close() }

// Read returns the snapshot stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Write stores the snapshot under key with no expiry.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, s.prefix+key, data, 0).Err()
}
