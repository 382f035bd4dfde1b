package domain

import "time"

// Rule is a single rewrite instruction within a ruleset.
type Rule struct {
	// ID is the rule identifier, lowercase alphanumeric with - and _.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable label.
	Name string `json:"name" yaml:"name"`

	// Instruction is the transformation text injected into the system prompt.
	Instruction string `json:"instruction" yaml:"instruction"`

	// Scope optionally limits which section types the rule targets. An empty
	// scope means all sections. Only used for conflict detection today.
	Scope []string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Ruleset is a named, versioned, hash-identified collection of rules.
// Immutable once activated; a new version must be created to change rules.
type Ruleset struct {
	// ID is the unique identifier for the ruleset.
	ID string

	// Name identifies the ruleset family across versions.
	Name string

	// Description is free-form documentation.
	Description string

	// Jurisdiction optionally constrains rewrites ("UAE", "UK", ...).
	Jurisdiction string

	// Version is the semantic version string ("1.0" or "1.0.0").
	Version string

	// ContentHash is the SHA-256 over the canonical serialized rules.
	ContentHash string

	// Active gates usage by jobs. At most one active version per name.
	Active bool

	// Rules is the ordered rule list.
	Rules []Rule

	// CreatedBy identifies the importing actor.
	CreatedBy string

	// Deleted is the soft-delete flag.
	Deleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleConflict records a detected contradiction between two rules. Unresolved
// conflicts block activation of the ruleset.
type RuleConflict struct {
	// ID is the unique identifier for the conflict record.
	ID string

	// RulesetID links to the owning Ruleset.
	RulesetID string

	// RuleA and RuleB are the conflicting rule IDs.
	RuleA string
	RuleB string

	// Description explains the contradiction.
	Description string

	// Resolved marks the conflict as acknowledged.
	Resolved bool

	CreatedAt time.Time
}
