package driving

import (
	"context"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// ReviewDecision carries the reviewer's verdict on one rewrite.
type ReviewDecision struct {
	Status             domain.ReviewStatus
	EditedText         string
	RiskOverrideReason string
}

// ReviewService manages human review of section rewrites.
type ReviewService interface {
	// GetOrCreate returns the review for a rewrite, creating a PENDING one
	// with the word diff attached on first access.
	GetOrCreate(ctx context.Context, rewriteID, reviewerID string) (*domain.Review, error)

	// Decide applies a reviewer decision. Only PENDING or RERUN_REQUESTED
	// reviews may be decided; approving over CRITICAL or HIGH findings
	// requires an override reason, and EDITED requires edited text.
	Decide(ctx context.Context, reviewID string, decision ReviewDecision, actor string) (*domain.Review, error)

	// Get retrieves a review by ID.
	Get(ctx context.Context, reviewID string) (*domain.Review, error)

	// Findings returns the risk findings recorded for a rewrite.
	Findings(ctx context.Context, rewriteID string) ([]domain.RiskFinding, error)
}
