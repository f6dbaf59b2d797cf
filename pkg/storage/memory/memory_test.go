package memory

import (
	"context"
	"testing"
)

func TestReadAbsentKey(t *testing.T) {
	s := New()
	data, ok, err := s.Read(context.Background(), "missing")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ok || data != nil {
		t.Fatalf("absent key: ok=%v data=%v", ok, data)
	}
}

func TestWriteThenRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Write(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, ok, err := s.Read(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if string(data) != "v1" {
		t.Fatalf("data = %q", data)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestOverwrite(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Write(ctx, "k", []byte("v1"))
	_ = s.Write(ctx, "k", []byte("v2"))
	data, _, _ := s.Read(ctx, "k")
	if string(data) != "v2" {
		t.Fatalf("data = %q", data)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestCopiesOnWriteAndRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	src := []byte("abc")
	_ = s.Write(ctx, "k", src)
	src[0] = 'X'

	got, _, _ := s.Read(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("write did not copy: %q", got)
	}
	got[0] = 'Y'
	again, _, _ := s.Read(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("read did not copy: %q", again)
	}
}
