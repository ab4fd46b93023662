package store

import (
	"context"
	"fmt"
	"sync"

	"autoscuola/internal/site/contact/models"
	"autoscuola/pkg/platform/sentinel"
)

// InMemoryStore keeps submissions for development and tests. Like the
// table, it refuses a second submission with an existing reference.
type InMemoryStore struct {
	mu          sync.Mutex
	submissions map[string]models.Submission
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{submissions: make(map[string]models.Submission)}
}

func (s *InMemoryStore) Save(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[sub.Reference]; exists {
		return fmt.Errorf("save contact submission %s: %w", sub.Reference, sentinel.ErrConflict)
	}
	s.submissions[sub.Reference] = *sub
	return nil
}
