package seqstore

import "testing"

func TestStorageKeyFormat(t *testing.T) {
	k := KeyInfo{
		Protocol: "seq",
		Version:  2,
		Context:  "client-a",
		Scope:    []string{"store", "sequence"},
	}
	want := "seq@2:client-a//store:sequence"
	if got := k.StorageKey(); got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}

func TestStorageKeySingleScopeSegment(t *testing.T) {
	k := KeyInfo{Protocol: "seq", Version: 1, Context: "c", Scope: []string{"session"}}
	if got := k.StorageKey(); got != "seq@1:c//session" {
		t.Fatalf("key = %q", got)
	}
}

func TestStorageKeyStableAcrossCalls(t *testing.T) {
	k := KeyInfo{Protocol: "seq", Version: 1, Context: "c", Scope: []string{"a", "b"}}
	if k.StorageKey() != k.StorageKey() {
		t.Fatalf("key not stable")
	}
}
