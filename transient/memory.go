package transient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// InMemoryStore is a thread-safe in-memory implementation of Store. Expired
// entries are treated as absent and dropped lazily.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithClock(time.Now)
}

// NewInMemoryStoreWithClock creates an in-memory store reading time from now.
func NewInMemoryStoreWithClock(now func() time.Time) *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Put stores or replaces a value
func (s *InMemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get retrieves a value by key
func (s *InMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	e, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return "", ErrNotFound
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur == e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return e.value, nil
}

// Delete removes a value
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet dropped.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
