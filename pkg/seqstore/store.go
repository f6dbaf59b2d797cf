package seqstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	logpkg "github.com/seqstore/seqstore/pkg/log"
)

// Options configures a Store.
type Options struct {
	// Keys supplies the key-derivation components. Zero-value fields are
	// defaulted: Protocol "seq", Version 1, Context a fresh UUID, Scope
	// ["store", "sequence"].
	Keys KeyInfo
	// Logger receives restore and persistence diagnostics. Defaults to a
	// no-op logger.
	Logger logpkg.Logger
}

// Store is the sequence store façade. All mutation flows through it; the
// underlying map is never exposed for direct mutation.
type Store[T Keyed] struct {
	mu      sync.Mutex
	seqs    *sequenceMap[T]
	gate    *restoreGate
	bus     *lifecycleBus[T]
	storage Storage
	key     string
	logger  logpkg.Logger
}

// New constructs a Store over the given storage backend. The store is empty
// and ungated; call Init to restore a persisted snapshot.
func New[T Keyed](storage Storage, opts Options) *Store[T] {
	keys := opts.Keys
	if keys.Protocol == "" {
		keys.Protocol = "seq"
	}
	if keys.Version == 0 {
		keys.Version = 1
	}
	if keys.Context == "" {
		keys.Context = uuid.NewString()
	}
	if len(keys.Scope) == 0 {
		keys.Scope = []string{"store", "sequence"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}

	s := &Store[T]{
		seqs:    newSequenceMap[T](),
		gate:    newRestoreGate(),
		bus:     newLifecycleBus[T](),
		storage: storage,
		key:     keys.StorageKey(),
		logger:  logger.With(logpkg.Component("seqstore"), logpkg.Str("key", keys.StorageKey())),
	}

	// Write-through: every record mutation triggers one full-snapshot write.
	persist := func(Event[T]) { s.persistAsync() }
	s.bus.On(EventCreated, persist)
	s.bus.On(EventUpdated, persist)
	s.bus.On(EventDeleted, persist)
	return s
}

// StorageKey returns the derived persistence key for this instance.
func (s *Store[T]) StorageKey() string { return s.key }

// Init restores a previously persisted snapshot into the map. It is
// best-effort: adapter failures, malformed snapshots, and conflicts are
// logged and swallowed, and the store remains usable. Calling Init twice
// re-runs the restore, which hits the conflict path if the first succeeded.
func (s *Store[T]) Init(ctx context.Context) {
	data, ok, err := s.storage.Read(ctx, s.key)
	if err != nil {
		s.logger.Warn("restore read failed", logpkg.Err(err))
		return
	}
	if !ok || len(data) == 0 {
		return
	}
	var restored []T
	if err := json.Unmarshal(data, &restored); err != nil {
		s.logger.Warn("restore snapshot malformed", logpkg.Err(err))
		return
	}
	if len(restored) == 0 {
		return
	}

	s.mu.Lock()
	if s.seqs.Len() > 0 {
		size := s.seqs.Len()
		s.mu.Unlock()
		s.logger.Warn("restore aborted", logpkg.Err(ErrRestoreConflict), logpkg.Int("existing", size))
		return
	}
	// Populate directly: restored entries fire no created events and no
	// persistence writes.
	for _, seq := range restored {
		s.seqs.Put(seq.SequenceTopic(), seq)
	}
	s.gate.BeginPending()
	s.mu.Unlock()

	s.gate.Clear()
	s.bus.Publish(Event[T]{Kind: EventEnabled})
	s.logger.Debug("restored", logpkg.Int("sequences", len(restored)))
}

// Set inserts a sequence under topic. If the topic already exists, the call
// delegates to Update with the full sequence as the patch. The only failure
// mode is ctx cancellation while gated (or a patch merge failure on the
// update path).
func (s *Store[T]) Set(ctx context.Context, topic string, seq T) error {
	if err := s.gate.AwaitReady(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.seqs.Has(topic) {
		s.mu.Unlock()
		patch, err := toPatch(seq)
		if err != nil {
			return fmt.Errorf("set %q: %w", topic, err)
		}
		_, err = s.Update(ctx, topic, patch)
		return err
	}
	s.seqs.Put(topic, seq)
	s.mu.Unlock()

	s.bus.Publish(Event[T]{Kind: EventCreated, Topic: topic, Sequence: seq})
	return nil
}

// Get returns the sequence stored under topic. It fails with a
// NoMatchingTopicError when the topic is absent.
func (s *Store[T]) Get(ctx context.Context, topic string) (T, error) {
	var zero T
	if err := s.gate.AwaitReady(ctx); err != nil {
		return zero, err
	}
	s.mu.Lock()
	seq, ok := s.seqs.Get(topic)
	s.mu.Unlock()
	if !ok {
		return zero, &NoMatchingTopicError{Topic: topic, Context: s.key}
	}
	return seq, nil
}

// Update shallow-merges patch into the record stored under topic: patch
// fields overwrite same-named fields, unspecified fields are retained. It
// returns the merged record and fails with a NoMatchingTopicError when the
// topic is absent.
func (s *Store[T]) Update(ctx context.Context, topic string, patch map[string]any) (T, error) {
	var zero T
	if err := s.gate.AwaitReady(ctx); err != nil {
		return zero, err
	}
	s.mu.Lock()
	cur, ok := s.seqs.Get(topic)
	if !ok {
		s.mu.Unlock()
		return zero, &NoMatchingTopicError{Topic: topic, Context: s.key}
	}
	merged, err := mergeSequence(cur, patch)
	if err != nil {
		s.mu.Unlock()
		return zero, fmt.Errorf("update %q: %w", topic, err)
	}
	s.seqs.Put(topic, merged)
	s.mu.Unlock()

	s.bus.Publish(Event[T]{Kind: EventUpdated, Topic: topic, Sequence: merged, Update: patch})
	return merged, nil
}

// Delete removes the topic and publishes the reason. Deleting an absent
// topic is a silent no-op.
func (s *Store[T]) Delete(ctx context.Context, topic string, reason Reason) error {
	if err := s.gate.AwaitReady(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	seq, ok := s.seqs.Get(topic)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.seqs.Remove(topic)
	s.mu.Unlock()

	s.bus.Publish(Event[T]{Kind: EventDeleted, Topic: topic, Sequence: seq, Reason: reason})
	return nil
}

// Len returns the number of stored sequences.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs.Len()
}

// Topics returns all topics in insertion order.
func (s *Store[T]) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs.Topics()
}

// Sequences returns all sequences in insertion order.
func (s *Store[T]) Sequences() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs.Values()
}

// On registers a handler for one event kind.
func (s *Store[T]) On(kind EventKind, fn Handler[T]) Subscription {
	return s.bus.On(kind, fn)
}

// Once registers a handler delivered at most once.
func (s *Store[T]) Once(kind EventKind, fn Handler[T]) Subscription {
	return s.bus.Once(kind, fn)
}

// Off removes a subscription. It reports whether anything was removed.
func (s *Store[T]) Off(sub Subscription) bool { return s.bus.Off(sub) }

// RemoveListener is an alias for Off, mirroring the event-emitter surface
// expected by external observers.
func (s *Store[T]) RemoveListener(sub Subscription) bool { return s.bus.Off(sub) }

// OnFiltered registers a handler for all event kinds, gated by a CEL
// expression over {kind, topic}, e.g. `kind == "deleted" &&
// topic.startsWith("session:")`.
func (s *Store[T]) OnFiltered(expr string, fn Handler[T]) (Subscription, error) {
	filter, err := newEventFilter(expr)
	if err != nil {
		return Subscription{}, fmt.Errorf("compile event filter: %w", err)
	}
	sub := s.bus.OnAll(func(ev Event[T]) {
		if filter.Eval(ev.Kind, ev.Topic) {
			fn(ev)
		}
	})
	return sub, nil
}

// Flush writes the current snapshot synchronously. The regular write-through
// path is fire-and-forget; Flush exists so callers can shut down without
// losing the last mutation.
func (s *Store[T]) Flush(ctx context.Context) error {
	data, err := s.snapshot()
	if err != nil {
		return err
	}
	if err := s.storage.Write(ctx, s.key, data); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	s.bus.Publish(Event[T]{Kind: EventSynced})
	return nil
}

// snapshot serializes the full current value set.
func (s *Store[T]) snapshot() ([]byte, error) {
	s.mu.Lock()
	values := s.seqs.Values()
	s.mu.Unlock()
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// persistAsync captures the snapshot at call time and writes it without
// awaiting completion. A failed write is logged, not surfaced to the
// mutating caller; the last write to complete wins.
func (s *Store[T]) persistAsync() {
	data, err := s.snapshot()
	if err != nil {
		s.logger.Error("snapshot encode failed", logpkg.Err(err))
		return
	}
	go func() {
		if err := s.storage.Write(context.Background(), s.key, data); err != nil {
			s.logger.Warn("snapshot write failed", logpkg.Err(err), logpkg.Int("bytes", len(data)))
			return
		}
		s.bus.Publish(Event[T]{Kind: EventSynced})
	}()
}

// toPatch converts a full sequence into a patch map for the Set-on-existing
// path.
func toPatch[T Keyed](seq T) (map[string]any, error) {
	b, err := json.Marshal(seq)
	if err != nil {
		return nil, fmt.Errorf("encode sequence: %w", err)
	}
	var patch map[string]any
	if err := json.Unmarshal(b, &patch); err != nil {
		return nil, fmt.Errorf("decode sequence: %w", err)
	}
	return patch, nil
}

// mergeSequence overlays patch onto cur field by field and decodes the
// result back into the record type.
func mergeSequence[T Keyed](cur T, patch map[string]any) (T, error) {
	var zero T
	b, err := json.Marshal(cur)
	if err != nil {
		return zero, fmt.Errorf("encode current: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return zero, fmt.Errorf("decode current: %w", err)
	}
	for k, v := range patch {
		fields[k] = v
	}
	mb, err := json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("encode merged: %w", err)
	}
	var merged T
	if err := json.Unmarshal(mb, &merged); err != nil {
		return zero, fmt.Errorf("decode merged: %w", err)
	}
	return merged, nil
}
