// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// DocumentStore persists documents and their sections.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID. Returns domain.ErrNotFound
	// when missing.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByHash retrieves the non-deleted document with the given
	// file hash, or nil when none exists.
	GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error)

	// ListDocuments returns all non-deleted documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// SaveSections persists a document's detected sections.
	SaveSections(ctx context.Context, sections []domain.Section) error

	// GetSection retrieves a section by ID.
	GetSection(ctx context.Context, id string) (*domain.Section, error)

	// ListSections returns a document's sections ordered by sequence number.
	ListSections(ctx context.Context, documentID string) ([]domain.Section, error)
}

// RulesetStore persists rulesets and their conflicts.
type RulesetStore interface {
	// SaveRuleset stores or updates a ruleset.
	SaveRuleset(ctx context.Context, rs *domain.Ruleset) error

	// GetRuleset retrieves a ruleset by ID.
	GetRuleset(ctx context.Context, id string) (*domain.Ruleset, error)

	// FindRuleset returns the ruleset with the given name and version, or
	// nil when none exists.
	FindRuleset(ctx context.Context, name, version string) (*domain.Ruleset, error)

	// ListRulesets returns all non-deleted rulesets.
	ListRulesets(ctx context.Context) ([]domain.Ruleset, error)

	// SaveConflicts persists detected rule conflicts.
	SaveConflicts(ctx context.Context, conflicts []domain.RuleConflict) error

	// ListConflicts returns a ruleset's conflict records.
	ListConflicts(ctx context.Context, rulesetID string) ([]domain.RuleConflict, error)
}

// JobStore persists rewrite jobs and their per-section rewrites.
type JobStore interface {
	// SaveJob stores or updates a job.
	SaveJob(ctx context.Context, job *domain.RewriteJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, id string) (*domain.RewriteJob, error)

	// ListJobs returns jobs, optionally filtered by document, newest first.
	ListJobs(ctx context.Context, documentID string) ([]domain.RewriteJob, error)

	// RunningJob returns the RUNNING job for a document, or nil when none.
	RunningJob(ctx context.Context, documentID string) (*domain.RewriteJob, error)

	// SaveRewrite stores or updates a section rewrite.
	SaveRewrite(ctx context.Context, rw *domain.SectionRewrite) error

	// GetRewrite retrieves a rewrite by ID.
	GetRewrite(ctx context.Context, id string) (*domain.SectionRewrite, error)

	// ListRewrites returns a job's rewrites ordered by the referenced
	// section's sequence number.
	ListRewrites(ctx context.Context, jobID string) ([]domain.SectionRewrite, error)
}

// ReviewStore persists review records.
type ReviewStore interface {
	// SaveReview stores or updates a review.
	SaveReview(ctx context.Context, review *domain.Review) error

	// GetReview retrieves a review by ID.
	GetReview(ctx context.Context, id string) (*domain.Review, error)

	// GetReviewByRewrite retrieves the review attached to a rewrite, or nil
	// when none exists.
	GetReviewByRewrite(ctx context.Context, rewriteID string) (*domain.Review, error)
}

// FindingStore persists risk findings.
type FindingStore interface {
	// SaveFindings appends findings for a rewrite. Findings are immutable.
	SaveFindings(ctx context.Context, findings []domain.RiskFinding) error

	// ListFindings returns a rewrite's findings in creation order.
	ListFindings(ctx context.Context, rewriteID string) ([]domain.RiskFinding, error)
}

// AuditStore persists the append-only audit chain.
type AuditStore interface {
	// AppendEvent inserts a new audit event. Events are immutable.
	AppendEvent(ctx context.Context, event *domain.AuditEvent) error

	// LastEvent returns the most recently created event, or nil when the
	// chain is empty.
	LastEvent(ctx context.Context) (*domain.AuditEvent, error)

	// ListEvents returns all events in creation order.
	ListEvents(ctx context.Context) ([]domain.AuditEvent, error)
}
