// Package seqstore implements a persistent keyed sequence store with
// restore gating.
//
// # Overview
//
// A Store holds an in-memory mapping from topic (string) to sequence (any
// record type exposing its topic) and writes the full set of records through
// to a pluggable Storage backend on every mutation. On startup, Init loads a
// previously persisted snapshot back into the map before any operation
// observes it; a restore gate blocks concurrent callers while that snapshot
// is being applied.
//
// Every record set is persisted as one JSON array under a single derived
// storage key:
//
//	{protocol}@{version}:{context}//{scope joined by ':'}
//
// API surface
//
//	st := seqstore.New[Session](backend, seqstore.Options{Logger: logger})
//	st.Init(ctx)                                  // best-effort restore
//	_ = st.Set(ctx, "t1", Session{Topic: "t1"})   // created + write-through
//	s, _ := st.Get(ctx, "t1")
//	s, _ = st.Update(ctx, "t1", map[string]any{"expiry": 60})
//	_ = st.Delete(ctx, "t1", seqstore.Reason{Code: 0, Message: "done"})
//
//	// Lifecycle events: created, updated, deleted, synced, enabled
//	sub := st.On(seqstore.EventCreated, func(ev seqstore.Event[Session]) { ... })
//	st.Off(sub)
//
// # Restore semantics
//
// Init is best-effort: a read failure, a malformed snapshot, or a conflict
// (persisted data found while the map is already populated) is logged and
// swallowed, and the store stays usable with whatever state it had. A
// non-empty snapshot restored into an empty map fires no created events and
// exactly one enabled event. Init is not idempotent; a second call re-runs
// the restore and hits the conflict path if the first one succeeded.
//
// # Persistence semantics
//
// Each created/updated/deleted event triggers one asynchronous write of the
// full snapshot captured at the moment the write was issued; a successful
// write fires synced. Writes are not awaited by the mutating caller, so two
// racing mutations may land their writes out of order and the last write
// wins. Flush performs a synchronous write for orderly shutdown.
package seqstore
