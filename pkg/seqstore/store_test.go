package seqstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seqstore/seqstore/pkg/storage/memory"
)

var testKeys = KeyInfo{Protocol: "seq", Version: 1, Context: "test", Scope: []string{"store", "sequence"}}

func newTestStore(t *testing.T) (*Store[testSeq], *memory.Store) {
	t.Helper()
	backend := memory.New()
	st := New[testSeq](backend, Options{Keys: testKeys})
	return st, backend
}

// recorder collects events; synced arrives from the async write goroutine,
// so access is locked and waits go through channels.
type recorder struct {
	mu     sync.Mutex
	events []Event[testSeq]
	synced chan struct{}
}

func record(t *testing.T, st *Store[testSeq]) *recorder {
	t.Helper()
	r := &recorder{synced: make(chan struct{}, 16)}
	_, err := st.OnFiltered("", func(ev Event[testSeq]) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
		if ev.Kind == EventSynced {
			r.synced <- struct{}{}
		}
	})
	if err != nil {
		t.Fatalf("subscribe recorder: %v", err)
	}
	return r
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) waitSynced(t *testing.T) {
	t.Helper()
	select {
	case <-r.synced:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for synced event")
	}
}

func TestSetThenGet(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	want := testSeq{Topic: "t1", V: 1}
	if err := st.Set(ctx, "t1", want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := st.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestGetAbsentTopicFails(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNoMatchingTopic) {
		t.Fatalf("err = %v, want ErrNoMatchingTopic", err)
	}
	var nmt *NoMatchingTopicError
	if !errors.As(err, &nmt) {
		t.Fatalf("err type = %T", err)
	}
	if nmt.Topic != "missing" {
		t.Fatalf("topic = %q", nmt.Topic)
	}
	if !strings.Contains(nmt.Context, "seq@1:test//store:sequence") {
		t.Fatalf("context = %q, want derived key", nmt.Context)
	}
}

func TestUpdateMergesPatch(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if err := st.Set(ctx, "t1", testSeq{Topic: "t1", V: 1, Peer: "alice"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	merged, err := st.Update(ctx, "t1", map[string]any{"v": 2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := testSeq{Topic: "t1", V: 2, Peer: "alice"}
	if merged != want {
		t.Fatalf("merged = %+v, want %+v", merged, want)
	}
	got, err := st.Get(ctx, "t1")
	if err != nil || got != want {
		t.Fatalf("get after update = %+v, %v", got, err)
	}
}

func TestUpdateAbsentTopicFails(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.Update(context.Background(), "missing", map[string]any{"v": 1})
	if !errors.Is(err, ErrNoMatchingTopic) {
		t.Fatalf("err = %v, want ErrNoMatchingTopic", err)
	}
}

func TestUpdatePublishesMergedRecordAndRawPatch(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	if err := st.Set(ctx, "t1", testSeq{Topic: "t1", V: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got Event[testSeq]
	st.On(EventUpdated, func(ev Event[testSeq]) { got = ev })
	patch := map[string]any{"v": 7}
	if _, err := st.Update(ctx, "t1", patch); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Topic != "t1" || got.Sequence.V != 7 {
		t.Fatalf("event = %+v", got)
	}
	if !reflect.DeepEqual(got.Update, patch) {
		t.Fatalf("event patch = %v, want %v", got.Update, patch)
	}
}

func TestDeleteRemovesTopic(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	if err := st.Set(ctx, "t1", testSeq{Topic: "t1", V: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got Event[testSeq]
	st.On(EventDeleted, func(ev Event[testSeq]) { got = ev })
	reason := Reason{Code: 0, Message: "done"}
	if err := st.Delete(ctx, "t1", reason); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got.Reason != reason || got.Sequence.V != 1 {
		t.Fatalf("deleted event = %+v", got)
	}
	if _, err := st.Get(ctx, "t1"); !errors.Is(err, ErrNoMatchingTopic) {
		t.Fatalf("get after delete: %v", err)
	}
}

func TestDeleteAbsentTopicIsSilentNoop(t *testing.T) {
	st, _ := newTestStore(t)
	r := record(t, st)
	if err := st.Delete(context.Background(), "missing", Reason{Code: 1}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(r.kinds()) != 0 {
		t.Fatalf("events fired on no-op delete: %v", r.kinds())
	}
}

func TestSetOnExistingTopicDelegatesToUpdate(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	if err := st.Set(ctx, "t1", testSeq{Topic: "t1", V: 1, Peer: "alice"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	r := record(t, st)
	if err := st.Set(ctx, "t1", testSeq{Topic: "t1", V: 2}); err != nil {
		t.Fatalf("second set: %v", err)
	}
	if r.count(EventCreated) != 0 || r.count(EventUpdated) != 1 {
		t.Fatalf("kinds = %v, want single updated", r.kinds())
	}
	got, err := st.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Full sequence as patch: Peer is omitempty, so the empty value is
	// absent from the patch and the stored value survives.
	if got.V != 2 || got.Peer != "alice" {
		t.Fatalf("got %+v", got)
	}
}

func TestWriteThroughPersistsFullSnapshot(t *testing.T) {
	st, backend := newTestStore(t)
	ctx := context.Background()
	r := record(t, st)

	if err := st.Set(ctx, "t1", testSeq{Topic: "t1", V: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	r.waitSynced(t)
	if err := st.Set(ctx, "t2", testSeq{Topic: "t2", V: 2}); err != nil {
		t.Fatalf("set: %v", err)
	}
	r.waitSynced(t)

	data, ok, err := backend.Read(ctx, st.StorageKey())
	if err != nil || !ok {
		t.Fatalf("read snapshot: ok=%v err=%v", ok, err)
	}
	var persisted []testSeq
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	want := []testSeq{{Topic: "t1", V: 1}, {Topic: "t2", V: 2}}
	if !reflect.DeepEqual(persisted, want) {
		t.Fatalf("persisted = %v, want %v", persisted, want)
	}
	if r.count(EventSynced) != 2 {
		t.Fatalf("synced count = %d, want one per mutation", r.count(EventSynced))
	}
}

func TestRestorePopulatesMapWithoutEvents(t *testing.T) {
	backend := memory.New()
	snapshot := []testSeq{{Topic: "t1", V: 1}, {Topic: "t2", V: 2}, {Topic: "t3", V: 3}}
	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := backend.Write(context.Background(), testKeys.StorageKey(), data); err != nil {
		t.Fatalf("seed backend: %v", err)
	}

	st := New[testSeq](backend, Options{Keys: testKeys})
	r := record(t, st)
	st.Init(context.Background())

	if st.Len() != 3 {
		t.Fatalf("len = %d, want 3", st.Len())
	}
	if r.count(EventCreated) != 0 {
		t.Fatalf("restore fired created events: %v", r.kinds())
	}
	if r.count(EventEnabled) != 1 {
		t.Fatalf("enabled count = %d, want 1", r.count(EventEnabled))
	}
	got, err := st.Get(context.Background(), "t2")
	if err != nil || got.V != 2 {
		t.Fatalf("get restored: %+v, %v", got, err)
	}
	if topics := st.Topics(); !reflect.DeepEqual(topics, []string{"t1", "t2", "t3"}) {
		t.Fatalf("topics = %v", topics)
	}
}

func TestRestoreEmptyBackendIsNoop(t *testing.T) {
	st, _ := newTestStore(t)
	r := record(t, st)
	st.Init(context.Background())
	if st.Len() != 0 || len(r.kinds()) != 0 {
		t.Fatalf("len=%d events=%v", st.Len(), r.kinds())
	}
}

func TestRestoreConflictLeavesMapUntouched(t *testing.T) {
	backend := memory.New()
	data, _ := json.Marshal([]testSeq{{Topic: "persisted", V: 9}})
	if err := backend.Write(context.Background(), testKeys.StorageKey(), data); err != nil {
		t.Fatalf("seed backend: %v", err)
	}

	st := New[testSeq](backend, Options{Keys: testKeys})
	ctx := context.Background()
	if err := st.Set(ctx, "pre", testSeq{Topic: "pre", V: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	r := record(t, st)
	st.Init(ctx)

	if r.count(EventEnabled) != 0 {
		t.Fatalf("enabled fired on conflict")
	}
	if topics := st.Topics(); !reflect.DeepEqual(topics, []string{"pre"}) {
		t.Fatalf("topics = %v, want only pre-existing", topics)
	}
	if _, err := st.Get(ctx, "persisted"); !errors.Is(err, ErrNoMatchingTopic) {
		t.Fatalf("persisted entry merged despite conflict: %v", err)
	}
}

func TestDoubleInitHitsConflictPath(t *testing.T) {
	backend := memory.New()
	data, _ := json.Marshal([]testSeq{{Topic: "t1", V: 1}})
	_ = backend.Write(context.Background(), testKeys.StorageKey(), data)

	st := New[testSeq](backend, Options{Keys: testKeys})
	r := record(t, st)
	st.Init(context.Background())
	st.Init(context.Background())

	if st.Len() != 1 {
		t.Fatalf("len = %d", st.Len())
	}
	if r.count(EventEnabled) != 1 {
		t.Fatalf("enabled count = %d, want exactly 1", r.count(EventEnabled))
	}
}

type failingStorage struct {
	readErr  error
	writeErr error
}

func (f *failingStorage) Read(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.readErr
}

func (f *failingStorage) Write(context.Context, string, []byte) error {
	return f.writeErr
}

func TestRestoreSwallowsAdapterFailure(t *testing.T) {
	backend := &failingStorage{readErr: fmt.Errorf("backend down")}
	st := New[testSeq](backend, Options{Keys: testKeys})
	st.Init(context.Background())

	// Store stays usable with an empty map.
	if err := st.Set(context.Background(), "t1", testSeq{Topic: "t1", V: 1}); err != nil {
		t.Fatalf("set after failed restore: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("len = %d", st.Len())
	}
}

func TestRestoreSwallowsMalformedSnapshot(t *testing.T) {
	backend := memory.New()
	_ = backend.Write(context.Background(), testKeys.StorageKey(), []byte("{not json["))

	st := New[testSeq](backend, Options{Keys: testKeys})
	r := record(t, st)
	st.Init(context.Background())
	if st.Len() != 0 || len(r.kinds()) != 0 {
		t.Fatalf("len=%d events=%v", st.Len(), r.kinds())
	}
}

func TestWriteFailureIsNotSurfacedToMutator(t *testing.T) {
	backend := &failingStorage{writeErr: fmt.Errorf("disk full")}
	st := New[testSeq](backend, Options{Keys: testKeys})

	if err := st.Set(context.Background(), "t1", testSeq{Topic: "t1", V: 1}); err != nil {
		t.Fatalf("set surfaced write failure: %v", err)
	}
	got, err := st.Get(context.Background(), "t1")
	if err != nil || got.V != 1 {
		t.Fatalf("in-memory state lost: %+v, %v", got, err)
	}
}

func TestFlushWritesSynchronously(t *testing.T) {
	st, backend := newTestStore(t)
	ctx := context.Background()
	if err := st.Set(ctx, "t1", testSeq{Topic: "t1", V: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	data, ok, err := backend.Read(ctx, st.StorageKey())
	if err != nil || !ok {
		t.Fatalf("read after flush: ok=%v err=%v", ok, err)
	}
	var persisted []testSeq
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(persisted) != 1 || persisted[0].V != 1 {
		t.Fatalf("persisted = %v", persisted)
	}
}

func TestRemoveListenerAliasesOff(t *testing.T) {
	st, _ := newTestStore(t)
	count := 0
	sub := st.On(EventCreated, func(Event[testSeq]) { count++ })
	if !st.RemoveListener(sub) {
		t.Fatalf("remove listener failed")
	}
	if err := st.Set(context.Background(), "t1", testSeq{Topic: "t1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if count != 0 {
		t.Fatalf("removed listener ran")
	}
}

func TestOnFilteredGatesDelivery(t *testing.T) {
	st, _ := newTestStore(t)
	var topics []string
	_, err := st.OnFiltered(`kind == "created" && topic.startsWith("session:")`, func(ev Event[testSeq]) {
		topics = append(topics, ev.Topic)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ctx := context.Background()
	_ = st.Set(ctx, "session:a", testSeq{Topic: "session:a"})
	_ = st.Set(ctx, "pairing:b", testSeq{Topic: "pairing:b"})
	if !reflect.DeepEqual(topics, []string{"session:a"}) {
		t.Fatalf("topics = %v", topics)
	}
}

func TestOnFilteredRejectsBadExpression(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.OnFiltered("kind ==", func(Event[testSeq]) {}); err == nil {
		t.Fatalf("expected compile error")
	}
}

// Concrete end-to-end scenario: set, get, update, delete.
func TestStoreLifecycleScenario(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if err := st.Set(ctx, "t1", testSeq{Topic: "t1", V: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := st.Get(ctx, "t1")
	if err != nil || got != (testSeq{Topic: "t1", V: 1}) {
		t.Fatalf("get = %+v, %v", got, err)
	}

	if _, err := st.Update(ctx, "t1", map[string]any{"v": 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = st.Get(ctx, "t1")
	if err != nil || got != (testSeq{Topic: "t1", V: 2}) {
		t.Fatalf("get after update = %+v, %v", got, err)
	}

	if err := st.Delete(ctx, "t1", Reason{Code: 0, Message: "done"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, "t1"); !errors.Is(err, ErrNoMatchingTopic) {
		t.Fatalf("get after delete = %v, want ErrNoMatchingTopic", err)
	}
}

func TestRestoreThenMutateRoundTrip(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	// First instance persists some state.
	first := New[testSeq](backend, Options{Keys: testKeys})
	first.Init(ctx)
	if err := first.Set(ctx, "t1", testSeq{Topic: "t1", V: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := first.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// Second instance restores it.
	second := New[testSeq](backend, Options{Keys: testKeys})
	second.Init(ctx)
	got, err := second.Get(ctx, "t1")
	if err != nil || got.V != 1 {
		t.Fatalf("restored get = %+v, %v", got, err)
	}
}
