package collection

import "sync"

// SyncMap is a mutex-guarded generic map.
type SyncMap[K comparable, V any] struct {
	mux sync.RWMutex
	m   map[K]V
}

// NewSyncMap creates a new SyncMap.
func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{m: map[K]V{}}
}

// Get returns the value stored under key.
func (s *SyncMap[K, V]) Get(key K) (V, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	value, ok := s.m[key]
	return value, ok
}

// Put stores value under key.
func (s *SyncMap[K, V]) Put(key K, value V) {
	s.mux.Lock()
	s.m[key] = value
	s.mux.Unlock()
}

// Delete removes key.
func (s *SyncMap[K, V]) Delete(key K) {
	s.mux.Lock()
	delete(s.m, key)
	s.mux.Unlock()
}

// GetAndDelete removes key and returns the value that was stored, if any.
func (s *SyncMap[K, V]) GetAndDelete(key K) (V, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	value, ok := s.m[key]
	if ok {
		delete(s.m, key)
	}
	return value, ok
}

// Size returns the number of stored entries.
func (s *SyncMap[K, V]) Size() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.m)
}
