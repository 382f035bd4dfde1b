package memory

import (
	"context"
	"sync"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

// Ensure AuditStore implements the interface.
var _ driven.AuditStore = (*AuditStore)(nil)

// AuditStore is an in-memory implementation of driven.AuditStore. Events are
// append-only and kept in insertion order.
type AuditStore struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// AppendEvent inserts a new audit event.
func (s *AuditStore) AppendEvent(_ context.Context, event *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// LastEvent returns the most recently created event, or nil when empty.
func (s *AuditStore) LastEvent(_ context.Context) (*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return nil, nil
	}
	event := s.events[len(s.events)-1]
	return &event, nil
}

// ListEvents returns all events in creation order.
func (s *AuditStore) ListEvents(_ context.Context) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEvent(nil), s.events...), nil
}

// Tamper rewrites a stored event in place. Tests use it to break the chain.
func (s *AuditStore) Tamper(index int, mutate func(*domain.AuditEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= 0 && index < len(s.events) {
		mutate(&s.events[index])
	}
}
