package seqstore

import (
	"errors"
	"fmt"
)

// ErrNoMatchingTopic is the sentinel matched by errors.Is for Get/Update on
// an absent topic.
var ErrNoMatchingTopic = errors.New("no matching topic")

// ErrRestoreConflict marks a restore that found persisted data while the
// in-memory map was already populated. It is logged, never returned from
// Init; it is exported so logs and tests can name the condition.
var ErrRestoreConflict = errors.New("restore conflict: in-memory sequences already exist")

// NoMatchingTopicError reports a lookup miss. Context is the derived storage
// key of the store instance, so the failing store is identifiable from the
// message alone.
type NoMatchingTopicError struct {
	Topic   string
	Context string
}

func (e *NoMatchingTopicError) Error() string {
	return fmt.Sprintf("no matching topic %q (%s)", e.Topic, e.Context)
}

// Is lets errors.Is(err, ErrNoMatchingTopic) succeed.
func (e *NoMatchingTopicError) Is(target error) bool {
	return target == ErrNoMatchingTopic
}
