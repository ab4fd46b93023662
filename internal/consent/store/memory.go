package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps a single consent value in memory, honouring its TTL.
type MemoryStore struct {
	mu        sync.RWMutex
	value     string
	present   bool
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryStore creates an empty store. A value can be seeded with Set.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.present || (!s.expiresAt.IsZero() && !s.now().Before(s.expiresAt)) {
		return "", false, nil
	}
	return s.value, true, nil
}

// Set stores value. A non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.present = value, true
	s.expiresAt = time.Time{}
	if ttl > 0 {
		s.expiresAt = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.present = "", false
	s.expiresAt = time.Time{}
	return nil
}
