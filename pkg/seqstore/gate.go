package seqstore

import (
	"context"
	"sync"
)

// restoreGate blocks operations while a restored snapshot is being
// confirmed. It is a one-shot broadcast condition: BeginPending enters the
// gated state, Clear releases every waiter exactly once, and the gate stays
// open for the rest of the store's lifetime.
type restoreGate struct {
	mu       sync.Mutex
	pending  bool
	cleared  bool
	released chan struct{}
}

func newRestoreGate() *restoreGate {
	return &restoreGate{released: make(chan struct{})}
}

// AwaitReady blocks the caller while a restore is pending. It returns
// immediately when no restore is pending or the gate has already cleared.
// There is no timeout; only ctx cancellation aborts the wait.
func (g *restoreGate) AwaitReady(ctx context.Context) error {
	g.mu.Lock()
	if !g.pending {
		g.mu.Unlock()
		return nil
	}
	ch := g.released
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BeginPending transitions Idle -> Pending. Called only after restore found
// a non-empty persisted snapshot.
func (g *restoreGate) BeginPending() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cleared {
		return
	}
	g.pending = true
}

// Clear releases all waiters. The release signal is emitted exactly once;
// afterwards the gate behaves as if no restore ever gated.
func (g *restoreGate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = false
	if !g.cleared {
		g.cleared = true
		close(g.released)
	}
}

// Pending reports whether callers are currently gated.
func (g *restoreGate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}
