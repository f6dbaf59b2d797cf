package seqstore

import "context"

// Keyed is the constraint on stored record types. The store never interprets
// a record beyond its topic.
type Keyed interface {
	SequenceTopic() string
}

// Reason describes why a sequence was deleted.
type Reason struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EventKind names a lifecycle event.
type EventKind string

const (
	// EventCreated fires when a topic is inserted via Set.
	EventCreated EventKind = "created"
	// EventUpdated fires when a topic is patched via Update (or Set on an
	// existing topic).
	EventUpdated EventKind = "updated"
	// EventDeleted fires when a topic is removed via Delete.
	EventDeleted EventKind = "deleted"
	// EventSynced fires after a successful snapshot write.
	EventSynced EventKind = "synced"
	// EventEnabled fires once per store instance, when the restore gate
	// releases.
	EventEnabled EventKind = "enabled"
)

// Event is a lifecycle notification. Topic and Sequence are set for
// created/updated/deleted; Update carries the raw patch on updated; Reason
// is set on deleted.
type Event[T Keyed] struct {
	Kind     EventKind
	Topic    string
	Sequence T
	Update   map[string]any
	Reason   Reason
}

// Handler receives lifecycle events. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type Handler[T Keyed] func(Event[T])

// Storage is the persistence contract consumed by the store. Implementations
// live in pkg/storage. Read reports absence via its second return rather
// than an error.
type Storage interface {
	Read(ctx context.Context, key string) (data []byte, ok bool, err error)
	Write(ctx context.Context, key string, data []byte) error
}
