package seqstore

import "testing"

func TestEventFilterEmptyExprMatchesAll(t *testing.T) {
	f, err := newEventFilter("")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Eval(EventCreated, "t1") || !f.Eval(EventSynced, "") {
		t.Fatalf("empty filter rejected an event")
	}
}

func TestEventFilterByKindAndTopic(t *testing.T) {
	f, err := newEventFilter(`kind == "deleted" && topic.startsWith("session:")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Eval(EventDeleted, "session:abc") {
		t.Fatalf("expected match")
	}
	if f.Eval(EventDeleted, "pairing:abc") {
		t.Fatalf("topic mismatch accepted")
	}
	if f.Eval(EventCreated, "session:abc") {
		t.Fatalf("kind mismatch accepted")
	}
}

func TestEventFilterInvalidExpr(t *testing.T) {
	if _, err := newEventFilter("kind =="); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestEventFilterNonBoolExprRejects(t *testing.T) {
	f, err := newEventFilter(`topic`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if f.Eval(EventCreated, "t1") {
		t.Fatalf("non-bool result treated as match")
	}
}
