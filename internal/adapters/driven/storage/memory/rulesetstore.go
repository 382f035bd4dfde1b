package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

// Ensure RulesetStore implements the interface.
var _ driven.RulesetStore = (*RulesetStore)(nil)

// RulesetStore is an in-memory implementation of driven.RulesetStore.
type RulesetStore struct {
	mu        sync.RWMutex
	rulesets  map[string]domain.Ruleset
	conflicts map[string][]domain.RuleConflict
}

// NewRulesetStore creates a new in-memory ruleset store.
func NewRulesetStore() *RulesetStore {
	return &RulesetStore{
		rulesets:  make(map[string]domain.Ruleset),
		conflicts: make(map[string][]domain.RuleConflict),
	}
}

// SaveRuleset stores or updates a ruleset.
func (s *RulesetStore) SaveRuleset(_ context.Context, rs *domain.Ruleset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rulesets[rs.ID] = *rs
	return nil
}

// GetRuleset retrieves a ruleset by ID.
func (s *RulesetStore) GetRuleset(_ context.Context, id string) (*domain.Ruleset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.rulesets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rs, nil
}

// FindRuleset returns the ruleset with the given name and version, or nil.
func (s *RulesetStore) FindRuleset(_ context.Context, name, version string) (*domain.Ruleset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.rulesets {
		rs := s.rulesets[id]
		if rs.Name == name && rs.Version == version && !rs.Deleted {
			return &rs, nil
		}
	}
	return nil, nil
}

// ListRulesets returns all non-deleted rulesets.
func (s *RulesetStore) ListRulesets(_ context.Context) ([]domain.Ruleset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Ruleset
	for id := range s.rulesets {
		if rs := s.rulesets[id]; !rs.Deleted {
			result = append(result, rs)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// SaveConflicts persists detected rule conflicts.
func (s *RulesetStore) SaveConflicts(_ context.Context, conflicts []domain.RuleConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rulesetID := conflicts[0].RulesetID
	s.conflicts[rulesetID] = append(s.conflicts[rulesetID], conflicts...)
	return nil
}

// ListConflicts returns a ruleset's conflict records.
func (s *RulesetStore) ListConflicts(_ context.Context, rulesetID string) ([]domain.RuleConflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RuleConflict(nil), s.conflicts[rulesetID]...), nil
}
