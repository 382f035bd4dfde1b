package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
	"github.com/fillwise/fillwise/internal/diff"
	"github.com/fillwise/fillwise/internal/logger"
)

// Ensure ReviewService implements the interface.
var _ driving.ReviewService = (*ReviewSvc)(nil)

// ReviewSvc manages the human review lifecycle for section rewrites.
// Exactly one review exists per rewrite; decisions are append-only.
type ReviewSvc struct {
	reviewStore  driven.ReviewStore
	jobStore     driven.JobStore
	docStore     driven.DocumentStore
	findingStore driven.FindingStore
	audit        driving.AuditService
}

// NewReviewSvc creates a new review service.
func NewReviewSvc(
	reviewStore driven.ReviewStore,
	jobStore driven.JobStore,
	docStore driven.DocumentStore,
	findingStore driven.FindingStore,
	audit driving.AuditService,
) *ReviewSvc {
	return &ReviewSvc{
		reviewStore:  reviewStore,
		jobStore:     jobStore,
		docStore:     docStore,
		findingStore: findingStore,
		audit:        audit,
	}
}

// GetOrCreate returns the review for a rewrite, creating a PENDING one with
// the word diff precomputed on first access.
func (s *ReviewSvc) GetOrCreate(ctx context.Context, rewriteID, reviewerID string) (*domain.Review, error) {
	rw, err := s.jobStore.GetRewrite(ctx, rewriteID)
	if err != nil {
		return nil, err
	}

	existing, err := s.reviewStore.GetReviewByRewrite(ctx, rewriteID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	diffJSON, err := s.diffAgainstSection(ctx, rw.SectionID, rw.RewrittenText)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:         uuid.New().String(),
		RewriteID:  rewriteID,
		ReviewerID: reviewerID,
		Status:     domain.ReviewPending,
		DiffJSON:   diffJSON,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.reviewStore.SaveReview(ctx, review); err != nil {
		return nil, err
	}
	logger.Get().Info("review created", "review_id", review.ID, "rewrite_id", rewriteID)
	return review, nil
}

// Decide applies a reviewer verdict to an undecided review.
func (s *ReviewSvc) Decide(ctx context.Context, reviewID string, decision driving.ReviewDecision, actor string) (*domain.Review, error) {
	review, err := s.reviewStore.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.Status.Decided() {
		return nil, fmt.Errorf("%w: review is already %s", domain.ErrReviewDecided, review.Status)
	}

	switch decision.Status {
	case domain.ReviewApproved, domain.ReviewRejected, domain.ReviewEdited, domain.ReviewRerunRequested:
	default:
		return nil, fmt.Errorf("%w: %q is not a valid review decision", domain.ErrInvalidInput, decision.Status)
	}

	if decision.Status == domain.ReviewApproved && decision.RiskOverrideReason == "" {
		blocking, err := s.blockingFindings(ctx, review.RewriteID)
		if err != nil {
			return nil, err
		}
		if blocking > 0 {
			return nil, fmt.Errorf(
				"%w: this rewrite has %d critical or high risk finding(s)",
				domain.ErrRiskOverrideRequired, blocking)
		}
	}

	if decision.Status == domain.ReviewEdited {
		if decision.EditedText == "" {
			return nil, fmt.Errorf("%w: an edited decision requires the edited text", domain.ErrInvalidInput)
		}
		rw, err := s.jobStore.GetRewrite(ctx, review.RewriteID)
		if err != nil {
			return nil, err
		}
		diffJSON, err := s.diffAgainstSection(ctx, rw.SectionID, decision.EditedText)
		if err != nil {
			return nil, err
		}
		review.EditedText = decision.EditedText
		review.DiffJSON = diffJSON
	}

	review.Status = decision.Status
	review.ReviewerID = actor
	review.RiskOverrideReason = decision.RiskOverrideReason
	review.UpdatedAt = time.Now().UTC()
	if err := s.reviewStore.SaveReview(ctx, review); err != nil {
		return nil, err
	}

	s.auditDecision(ctx, actor, review)
	logger.Get().Info("review decided",
		"review_id", review.ID, "status", review.Status, "reviewer", actor)
	return review, nil
}

// Get retrieves a review by ID.
func (s *ReviewSvc) Get(ctx context.Context, reviewID string) (*domain.Review, error) {
	return s.reviewStore.GetReview(ctx, reviewID)
}

// Findings returns the risk findings recorded for a rewrite.
func (s *ReviewSvc) Findings(ctx context.Context, rewriteID string) ([]domain.RiskFinding, error) {
	if _, err := s.jobStore.GetRewrite(ctx, rewriteID); err != nil {
		return nil, err
	}
	return s.findingStore.ListFindings(ctx, rewriteID)
}

// diffAgainstSection computes the serialized word diff between the rewrite's
// source section and the given candidate text. A vanished section diffs
// against the empty string so the reviewer still sees the full insertion.
func (s *ReviewSvc) diffAgainstSection(ctx context.Context, sectionID, candidate string) (string, error) {
	original := ""
	if section, err := s.docStore.GetSection(ctx, sectionID); err == nil {
		original = section.OriginalText
	}
	return diff.ToJSON(diff.Generate(original, candidate))
}

func (s *ReviewSvc) blockingFindings(ctx context.Context, rewriteID string) (int, error) {
	findings, err := s.findingStore.ListFindings(ctx, rewriteID)
	if err != nil {
		return 0, err
	}
	blocking := 0
	for _, f := range findings {
		if f.Severity == domain.RiskCritical || f.Severity == domain.RiskHigh {
			blocking++
		}
	}
	return blocking, nil
}

func (s *ReviewSvc) auditDecision(ctx context.Context, actor string, review *domain.Review) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.Log(ctx, domain.AuditEntry{
		EventType:     "review." + string(review.Status),
		ActorUsername: actor,
		EntityType:    "Review",
		EntityID:      review.ID,
		Payload: map[string]any{
			"status":     string(review.Status),
			"rewrite_id": review.RewriteID,
		},
	})
	if err != nil {
		logger.Get().Warn("audit write failed", "event_type", "review."+string(review.Status), "error", err)
	}
}
