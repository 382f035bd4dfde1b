package domain

import "time"

// ReviewStatus tracks the human review decision for one rewrite.
type ReviewStatus string

const (
	ReviewPending        ReviewStatus = "pending"
	ReviewApproved       ReviewStatus = "approved"
	ReviewRejected       ReviewStatus = "rejected"
	ReviewEdited         ReviewStatus = "edited"
	ReviewRerunRequested ReviewStatus = "rerun_requested"
)

// Decided reports whether the review has reached a terminal decision.
// Only PENDING and RERUN_REQUESTED reviews may still be decided.
func (s ReviewStatus) Decided() bool {
	return s != ReviewPending && s != ReviewRerunRequested
}

// Review is the human review record for a single SectionRewrite. Exactly one
// per rewrite; transitions are append-only.
type Review struct {
	// ID is the unique identifier for the review.
	ID string

	// RewriteID links to the reviewed SectionRewrite (unique).
	RewriteID string

	// ReviewerID identifies the deciding actor.
	ReviewerID string

	// Status is the review decision state.
	Status ReviewStatus

	// EditedText, when set, overrides the model output during assembly.
	EditedText string

	// DiffJSON is the serialized word-level diff shown to the reviewer.
	DiffJSON string

	// RiskOverrideReason justifies approving over CRITICAL findings.
	RiskOverrideReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
