package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
	"github.com/fillwise/fillwise/internal/logger"
	"github.com/fillwise/fillwise/internal/rules"
)

// Ensure RulesetService implements the interface.
var _ driving.RulesetService = (*RulesetService)(nil)

// RulesetService imports and activates rule sets.
type RulesetService struct {
	store driven.RulesetStore
	audit driving.AuditService
}

// NewRulesetService creates a new ruleset service.
func NewRulesetService(store driven.RulesetStore, audit driving.AuditService) *RulesetService {
	return &RulesetService{store: store, audit: audit}
}

// Import parses and stores a rule set YAML file. Re-importing identical
// content returns the stored rule set; the same name and version with
// different content is a collision.
func (s *RulesetService) Import(ctx context.Context, path, actor string) (*domain.Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", domain.ErrInvalidInput, path, err)
	}

	file, err := rules.Parse(data)
	if err != nil {
		return nil, err
	}
	contentHash := rules.ContentHash(file)

	existing, err := s.store.FindRuleset(ctx, file.Name, file.Version)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.ContentHash == contentHash {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %s %s already exists with different content",
			domain.ErrVersionCollision, file.Name, file.Version)
	}

	now := time.Now().UTC()
	rs := &domain.Ruleset{
		ID:           uuid.New().String(),
		Name:         file.Name,
		Description:  file.Description,
		Jurisdiction: file.Jurisdiction,
		Version:      file.Version,
		ContentHash:  contentHash,
		Rules:        file.Rules,
		CreatedBy:    actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SaveRuleset(ctx, rs); err != nil {
		return nil, err
	}

	conflicts := rules.DetectConflicts(file.Rules)
	if len(conflicts) > 0 {
		records := make([]domain.RuleConflict, len(conflicts))
		for i, c := range conflicts {
			records[i] = domain.RuleConflict{
				ID:          uuid.New().String(),
				RulesetID:   rs.ID,
				RuleA:       c.RuleA,
				RuleB:       c.RuleB,
				Description: c.Description,
				CreatedAt:   now,
			}
		}
		if err := s.store.SaveConflicts(ctx, records); err != nil {
			return nil, err
		}
		logger.Get().Warn("rule conflicts detected",
			"ruleset_id", rs.ID, "conflicts", len(records))
	}

	s.auditLog(ctx, actor, "ruleset.imported", rs.ID, map[string]any{
		"name":      rs.Name,
		"version":   rs.Version,
		"rules":     len(rs.Rules),
		"conflicts": len(conflicts),
	})
	return rs, nil
}

// Get retrieves a rule set by ID.
func (s *RulesetService) Get(ctx context.Context, rulesetID string) (*domain.Ruleset, error) {
	return s.store.GetRuleset(ctx, rulesetID)
}

// List returns all non-deleted rule sets.
func (s *RulesetService) List(ctx context.Context) ([]domain.Ruleset, error) {
	return s.store.ListRulesets(ctx)
}

// Activate marks a rule set active. Any other active version of the same
// name is deactivated first; unresolved conflicts block activation.
func (s *RulesetService) Activate(ctx context.Context, rulesetID, actor string) error {
	rs, err := s.store.GetRuleset(ctx, rulesetID)
	if err != nil {
		return err
	}
	if rs.Active {
		return nil
	}

	conflicts, err := s.store.ListConflicts(ctx, rulesetID)
	if err != nil {
		return err
	}
	for _, c := range conflicts {
		if !c.Resolved {
			return fmt.Errorf("%w: %d unresolved conflict(s) block activation",
				domain.ErrRulesetConflicts, len(conflicts))
		}
	}

	all, err := s.store.ListRulesets(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		other := all[i]
		if other.Name == rs.Name && other.Active && other.ID != rs.ID {
			other.Active = false
			other.UpdatedAt = time.Now().UTC()
			if err := s.store.SaveRuleset(ctx, &other); err != nil {
				return err
			}
		}
	}

	rs.Active = true
	rs.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveRuleset(ctx, rs); err != nil {
		return err
	}

	s.auditLog(ctx, actor, "ruleset.activated", rs.ID, map[string]any{
		"name":    rs.Name,
		"version": rs.Version,
	})
	logger.Get().Info("ruleset activated", "ruleset_id", rs.ID, "name", rs.Name, "version", rs.Version)
	return nil
}

// Conflicts lists detected conflicts for a rule set.
func (s *RulesetService) Conflicts(ctx context.Context, rulesetID string) ([]domain.RuleConflict, error) {
	if _, err := s.store.GetRuleset(ctx, rulesetID); err != nil {
		return nil, err
	}
	return s.store.ListConflicts(ctx, rulesetID)
}

func (s *RulesetService) auditLog(ctx context.Context, actor, eventType, entityID string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.Log(ctx, domain.AuditEntry{
		EventType:     eventType,
		ActorUsername: actor,
		EntityType:    "Ruleset",
		EntityID:      entityID,
		Payload:       payload,
	})
	if err != nil {
		logger.Get().Warn("audit write failed", "event_type", eventType, "error", err)
	}
}
