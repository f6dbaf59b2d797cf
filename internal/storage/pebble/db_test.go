package pebblestore

import (
	"bytes"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{DataDir: t.TempDir(), Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := newTestDB(t)

	if err := db.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := db.Get([]byte("k1"))
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("got %q, want v1", got)
	}

	if err := db.Delete([]byte("k1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, err = db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Fatalf("expected key absent after delete")
	}
}

func TestGetAbsentKey(t *testing.T) {
	db := newTestDB(t)
	_, ok, err := db.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected absent")
	}
}

func TestDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db2.Close() }()
	got, ok, err := db2.Get([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatalf("got %q, want v", got)
	}
}
