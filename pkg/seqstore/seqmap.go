package seqstore

// sequenceMap is the topic -> sequence mapping. Iteration order is insertion
// order so snapshots serialize deterministically. It has no locking of its
// own; the owning Store serializes all access.
type sequenceMap[T Keyed] struct {
	entries map[string]T
	order   []string
}

func newSequenceMap[T Keyed]() *sequenceMap[T] {
	return &sequenceMap[T]{entries: make(map[string]T)}
}

func (m *sequenceMap[T]) Has(topic string) bool {
	_, ok := m.entries[topic]
	return ok
}

func (m *sequenceMap[T]) Get(topic string) (T, bool) {
	seq, ok := m.entries[topic]
	return seq, ok
}

// Put inserts or replaces. A replaced topic keeps its original position.
func (m *sequenceMap[T]) Put(topic string, seq T) {
	if _, ok := m.entries[topic]; !ok {
		m.order = append(m.order, topic)
	}
	m.entries[topic] = seq
}

func (m *sequenceMap[T]) Remove(topic string) {
	if _, ok := m.entries[topic]; !ok {
		return
	}
	delete(m.entries, topic)
	for i, t := range m.order {
		if t == topic {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *sequenceMap[T]) Len() int { return len(m.entries) }

func (m *sequenceMap[T]) Topics() []string {
	return append([]string(nil), m.order...)
}

func (m *sequenceMap[T]) Values() []T {
	out := make([]T, 0, len(m.order))
	for _, t := range m.order {
		out = append(out, m.entries[t])
	}
	return out
}
