package domain

import "time"

// JobStatus tracks the rewrite job lifecycle.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Startable reports whether the orchestrator may pick the job up.
func (s JobStatus) Startable() bool {
	return s == JobPending || s == JobPaused
}

// RewriteStatus tracks a single section rewrite.
type RewriteStatus string

const (
	RewritePending   RewriteStatus = "pending"
	RewriteRunning   RewriteStatus = "running"
	RewriteCompleted RewriteStatus = "completed"
	RewriteFailed    RewriteStatus = "failed"
	RewriteSkipped   RewriteStatus = "skipped"
)

// RewriteJob is a batch rewrite of one document under one active ruleset.
// At most one RUNNING job per document.
type RewriteJob struct {
	// ID is the unique identifier for the job.
	ID string

	// DocumentID links to the target Document.
	DocumentID string

	// RulesetID links to the active Ruleset used for prompts.
	RulesetID string

	// Status is the job lifecycle state.
	Status JobStatus

	// ErrorMessage holds the failure summary when Status is failed.
	ErrorMessage string

	// TotalSections is the number of scheduled rewrites.
	TotalSections int

	// CompletedSections counts processed rewrites for progress reporting.
	CompletedSections int

	// CreatedBy identifies the requesting actor.
	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SectionRewrite is the per-section unit of work. It stores the exact
// compiled prompt for reproducibility, the cleaned model output, and
// token/timing counters.
type SectionRewrite struct {
	// ID is the unique identifier for the rewrite.
	ID string

	// JobID links to the owning RewriteJob.
	JobID string

	// SectionID links to the Section being rewritten.
	SectionID string

	// Status is the per-rewrite lifecycle state.
	Status RewriteStatus

	// PromptHash is the deterministic hash of the compiled prompt.
	PromptHash string

	// PromptText is the serialized compiled prompt, truncated for storage.
	PromptText string

	// RewrittenText is the cleaned model output (audit suffix stripped).
	RewrittenText string

	// ModelName records which model produced the rewrite.
	ModelName string

	// TokensCompletion counts streamed completion tokens.
	TokensCompletion int

	// DurationMs is the wall-clock rewrite duration.
	DurationMs int64

	// AttemptNumber increments each time the rewrite is (re)processed.
	AttemptNumber int

	// ErrorMessage holds the truncated failure detail.
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProgressUpdate is the wire-level progress frame forwarded to a live
// subscriber while a job runs.
type ProgressUpdate struct {
	JobID             string        `json:"job_id"`
	SectionID         string        `json:"section_id,omitempty"`
	Status            RewriteStatus `json:"status,omitempty"`
	Token             string        `json:"token,omitempty"`
	CompletedSections int           `json:"completed_sections"`
	TotalSections     int           `json:"total_sections"`
	Error             string        `json:"error,omitempty"`
	Done              bool          `json:"done,omitempty"`
}
