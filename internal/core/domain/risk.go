package domain

import "time"

// RiskSeverity grades a risk finding.
type RiskSeverity string

const (
	RiskCritical RiskSeverity = "critical"
	RiskHigh     RiskSeverity = "high"
	RiskMedium   RiskSeverity = "medium"
	RiskLow      RiskSeverity = "low"
	RiskInfo     RiskSeverity = "info"
)

// RiskFinding flags a rewrite that may have altered legally significant
// content. Never mutated after creation; corrections happen via new findings
// or reviewer override.
type RiskFinding struct {
	// ID is the unique identifier for the finding.
	ID string

	// RewriteID links to the SectionRewrite that triggered the finding.
	RewriteID string

	// Severity grades the finding.
	Severity RiskSeverity

	// Category names the check ("numeric_drift", "date_drift",
	// "party_change", "semantic_deviation", "length_anomaly").
	Category string

	// Description is the human-readable explanation.
	Description string

	// Score is the check-specific risk score in [0, 1].
	Score float64

	CreatedAt time.Time
}
