package memory

import (
	"context"
	"sync"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

// Ensure the implementations satisfy their interfaces.
var (
	_ driven.ReviewStore  = (*ReviewStore)(nil)
	_ driven.FindingStore = (*FindingStore)(nil)
)

// ReviewStore is an in-memory implementation of driven.ReviewStore.
type ReviewStore struct {
	mu      sync.RWMutex
	reviews map[string]domain.Review
}

// NewReviewStore creates a new in-memory review store.
func NewReviewStore() *ReviewStore {
	return &ReviewStore{reviews: make(map[string]domain.Review)}
}

// SaveReview stores or updates a review.
func (s *ReviewStore) SaveReview(_ context.Context, review *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[review.ID] = *review
	return nil
}

// GetReview retrieves a review by ID.
func (s *ReviewStore) GetReview(_ context.Context, id string) (*domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	review, ok := s.reviews[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &review, nil
}

// GetReviewByRewrite retrieves the review attached to a rewrite, or nil.
func (s *ReviewStore) GetReviewByRewrite(_ context.Context, rewriteID string) (*domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.reviews {
		review := s.reviews[id]
		if review.RewriteID == rewriteID {
			return &review, nil
		}
	}
	return nil, nil
}

// FindingStore is an in-memory implementation of driven.FindingStore.
type FindingStore struct {
	mu       sync.RWMutex
	findings map[string][]domain.RiskFinding
}

// NewFindingStore creates a new in-memory finding store.
func NewFindingStore() *FindingStore {
	return &FindingStore{findings: make(map[string][]domain.RiskFinding)}
}

// SaveFindings appends findings for a rewrite.
func (s *FindingStore) SaveFindings(_ context.Context, findings []domain.RiskFinding) error {
	if len(findings) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rewriteID := findings[0].RewriteID
	s.findings[rewriteID] = append(s.findings[rewriteID], findings...)
	return nil
}

// ListFindings returns a rewrite's findings in creation order.
func (s *FindingStore) ListFindings(_ context.Context, rewriteID string) ([]domain.RiskFinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RiskFinding(nil), s.findings[rewriteID]...), nil
}
