package store

import (
	"sync"

	"github.com/i474232898/appweather/internal/weather"
)

// ErrNotFound is returned when a preference key has never been set.
var ErrNotFound = weather.ErrPreferenceNotFound

// MemoryStore is a concurrency-safe in-memory preference store.
// Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
	}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Close is a no-op so MemoryStore can stand in for SQLiteStore.
func (s *MemoryStore) Close() error {
	return nil
}
