package seqstore

import (
	"sync"

	"github.com/seqstore/seqstore/pkg/id"
)

// Subscription identifies a registered handler. Tokens are monotonic, so
// token order equals subscription order, which is also delivery order.
type Subscription struct {
	token id.ID
}

// String returns the token in hex form, for logging.
func (s Subscription) String() string { return s.token.String() }

type busEntry[T Keyed] struct {
	token id.ID
	fn    Handler[T]
	once  bool
}

// lifecycleBus is an in-process, synchronous publish/subscribe hub for
// lifecycle events. Publish runs all current subscribers to completion
// before returning; handlers must not block. The lock is released before
// handlers run, so handlers may subscribe or unsubscribe freely.
type lifecycleBus[T Keyed] struct {
	mu   sync.Mutex
	gen  *id.Generator
	subs map[EventKind][]busEntry[T]
}

func newLifecycleBus[T Keyed]() *lifecycleBus[T] {
	return &lifecycleBus[T]{
		gen:  id.NewGenerator(),
		subs: make(map[EventKind][]busEntry[T]),
	}
}

// On registers fn for one event kind.
func (b *lifecycleBus[T]) On(kind EventKind, fn Handler[T]) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := b.gen.Next()
	b.subs[kind] = append(b.subs[kind], busEntry[T]{token: tok, fn: fn})
	return Subscription{token: tok}
}

// Once registers fn for one event kind; the entry is removed before its
// first delivery.
func (b *lifecycleBus[T]) Once(kind EventKind, fn Handler[T]) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := b.gen.Next()
	b.subs[kind] = append(b.subs[kind], busEntry[T]{token: tok, fn: fn, once: true})
	return Subscription{token: tok}
}

// OnAll registers fn under every event kind, sharing a single token.
func (b *lifecycleBus[T]) OnAll(fn Handler[T]) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := b.gen.Next()
	for _, kind := range []EventKind{EventCreated, EventUpdated, EventDeleted, EventSynced, EventEnabled} {
		b.subs[kind] = append(b.subs[kind], busEntry[T]{token: tok, fn: fn})
	}
	return Subscription{token: tok}
}

// Off removes the handler registered under sub, wherever it is registered.
// It reports whether anything was removed.
func (b *lifecycleBus[T]) Off(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := false
	for kind, entries := range b.subs {
		kept := entries[:0]
		for _, e := range entries {
			if e.token == sub.token {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		b.subs[kind] = kept
	}
	return removed
}

// Publish delivers ev to all current subscribers of its kind, in
// subscription order. Once-entries are consumed before delivery, so a
// handler re-publishing the same kind cannot re-trigger them.
func (b *lifecycleBus[T]) Publish(ev Event[T]) {
	b.mu.Lock()
	entries := b.subs[ev.Kind]
	run := make([]busEntry[T], len(entries))
	copy(run, entries)
	kept := entries[:0]
	for _, e := range entries {
		if !e.once {
			kept = append(kept, e)
		}
	}
	b.subs[ev.Kind] = kept
	b.mu.Unlock()

	for _, e := range run {
		e.fn(ev)
	}
}
