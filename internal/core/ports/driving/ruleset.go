package driving

import (
	"context"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// RulesetService manages transformation rule sets.
type RulesetService interface {
	// Import parses, validates, and stores a rule set YAML file. A name and
	// version collision with different content is rejected; identical
	// content returns the existing rule set.
	Import(ctx context.Context, path, actor string) (*domain.Ruleset, error)

	// Get retrieves a rule set by ID.
	Get(ctx context.Context, rulesetID string) (*domain.Ruleset, error)

	// List returns all non-deleted rule sets.
	List(ctx context.Context) ([]domain.Ruleset, error)

	// Activate marks a rule set active, deactivating any prior active
	// version of the same name. Rule sets with unresolved conflicts
	// cannot be activated.
	Activate(ctx context.Context, rulesetID, actor string) error

	// Conflicts lists detected rule conflicts for a rule set.
	Conflicts(ctx context.Context, rulesetID string) ([]domain.RuleConflict, error)
}
