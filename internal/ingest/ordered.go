package ingest

// orderedMap is a string-keyed map that iterates in first-insertion order.
// Overwriting a key keeps its original position.
type orderedMap[V any] struct {
	index map[string]int
	vals  []V
}

func newOrderedMap[V any](capacity int) *orderedMap[V] {
	return &orderedMap[V]{
		index: make(map[string]int, capacity),
		vals:  make([]V, 0, capacity),
	}
}

func (m *orderedMap[V]) get(key string) (V, bool) {
	i, ok := m.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return m.vals[i], true
}

func (m *orderedMap[V]) set(key string, v V) {
	if i, ok := m.index[key]; ok {
		m.vals[i] = v
		return
	}
	m.index[key] = len(m.vals)
	m.vals = append(m.vals, v)
}

func (m *orderedMap[V]) values() []V {
	return m.vals
}
