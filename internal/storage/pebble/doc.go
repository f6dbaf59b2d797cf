// Package pebblestore wraps a Pebble database with the small surface the
// snapshot store needs: point reads with absent-key reporting, policy-driven
// fsync on writes, and prefix iteration for listing persisted slots.
package pebblestore
