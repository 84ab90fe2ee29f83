// Package syncmap provides a typed map synchronized with a mutex.
package syncmap

import (
	"iter"
	"sync"
)

// Map is a regular map but synchronized with a read-write mutex.
// The zero value is an empty map ready to use.
type Map[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// New returns a new syncmap.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		m: make(map[K]V),
	}
}

// Load returns the value for a key.
func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[key]
	return v, ok
}

// LoadOrStore returns the existing value for a key if there is one.
// Otherwise, it stores and returns the given value.
// The loaded result reports whether the value was already present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.m[key]; ok {
		return v, true
	}
	if m.m == nil {
		m.m = make(map[K]V)
	}
	m.m[key] = value
	return value, false
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.m == nil {
		m.m = make(map[K]V)
	}
	m.m[key] = value
}

// Delete deletes a key.
func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, key)
}

// Clear deletes all keys.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.m)
}

// Len returns the number of elements in the map.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// All iterates over all elements in the map.
// The map is unlocked while the loop body runs, so it may be modified
// during iteration. Elements changed during iteration may or may not be
// visited.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.mu.RLock()
		for k, v := range m.m {
			m.mu.RUnlock()
			if !yield(k, v) {
				return
			}
			m.mu.RLock()
		}
		m.mu.RUnlock()
	}
}
