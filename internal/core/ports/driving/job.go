package driving

import (
	"context"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// JobService creates and runs rewrite jobs.
type JobService interface {
	// Create validates preconditions (document MAPPED, rule set active,
	// no other job running for the document, LLM reachable) and persists
	// a PENDING job covering the given sections, or every section of the
	// document when sectionIDs is empty.
	Create(ctx context.Context, documentID, rulesetID string, sectionIDs []string, actor string) (*domain.RewriteJob, error)

	// Run executes a PENDING job. Progress updates and streamed tokens are
	// delivered on the returned channel, which closes when the job reaches
	// a terminal state. Run returns immediately; the pipeline executes on
	// a background goroutine.
	Run(ctx context.Context, jobID, actor string) (<-chan domain.ProgressUpdate, error)

	// Restart resets a FAILED or stale RUNNING job back to PENDING,
	// rebasing the completed counter on rewrites that actually finished.
	Restart(ctx context.Context, jobID, actor string) (*domain.RewriteJob, error)

	// Get retrieves a job by ID.
	Get(ctx context.Context, jobID string) (*domain.RewriteJob, error)

	// List returns jobs, optionally filtered to one document.
	List(ctx context.Context, documentID string) ([]domain.RewriteJob, error)

	// Rewrites returns a job's section rewrites in section order.
	Rewrites(ctx context.Context, jobID string) ([]domain.SectionRewrite, error)
}
