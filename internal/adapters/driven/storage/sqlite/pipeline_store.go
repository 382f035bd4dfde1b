package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

// ==================== Job Store ====================

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// SaveJob stores or updates a job.
func (s *jobStore) SaveJob(ctx context.Context, job *domain.RewriteJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO rewrite_jobs
			(id, document_id, ruleset_id, status, error_message, total_sections,
			 completed_sections, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			total_sections = excluded.total_sections,
			completed_sections = excluded.completed_sections,
			updated_at = excluded.updated_at
	`, job.ID, job.DocumentID, job.RulesetID, string(job.Status), job.ErrorMessage,
		job.TotalSections, job.CompletedSections, job.CreatedBy, job.CreatedAt, job.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

const jobColumns = `id, document_id, ruleset_id, status, error_message,
	total_sections, completed_sections, created_by, created_at, updated_at`

// GetJob retrieves a job by ID.
func (s *jobStore) GetJob(ctx context.Context, id string) (*domain.RewriteJob, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM rewrite_jobs WHERE id = ?", id)

	return scanJob(row)
}

// ListJobs returns jobs, optionally filtered by document, newest first.
func (s *jobStore) ListJobs(ctx context.Context, documentID string) ([]domain.RewriteJob, error) {
	query := "SELECT " + jobColumns + " FROM rewrite_jobs ORDER BY created_at DESC"
	args := []any{}
	if documentID != "" {
		query = "SELECT " + jobColumns + " FROM rewrite_jobs WHERE document_id = ? ORDER BY created_at DESC"
		args = append(args, documentID)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.RewriteJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// RunningJob returns the RUNNING job for a document, or nil when none.
func (s *jobStore) RunningJob(ctx context.Context, documentID string) (*domain.RewriteJob, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM rewrite_jobs WHERE document_id = ? AND status = ? LIMIT 1",
		documentID, string(domain.JobRunning))

	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // No running job is valid
	}
	return job, err
}

// SaveRewrite stores or updates a section rewrite.
func (s *jobStore) SaveRewrite(ctx context.Context, rw *domain.SectionRewrite) error {
	if rw.CreatedAt.IsZero() {
		rw.CreatedAt = time.Now().UTC()
	}
	if rw.UpdatedAt.IsZero() {
		rw.UpdatedAt = rw.CreatedAt
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO section_rewrites
			(id, job_id, section_id, status, prompt_hash, prompt_text, rewritten_text,
			 model_name, tokens_completion, duration_ms, attempt_number, error_message,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			prompt_hash = excluded.prompt_hash,
			prompt_text = excluded.prompt_text,
			rewritten_text = excluded.rewritten_text,
			model_name = excluded.model_name,
			tokens_completion = excluded.tokens_completion,
			duration_ms = excluded.duration_ms,
			attempt_number = excluded.attempt_number,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, rw.ID, rw.JobID, rw.SectionID, string(rw.Status), rw.PromptHash, rw.PromptText,
		rw.RewrittenText, rw.ModelName, rw.TokensCompletion, rw.DurationMs,
		rw.AttemptNumber, rw.ErrorMessage, rw.CreatedAt, rw.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving rewrite: %w", err)
	}
	return nil
}

const rewriteColumns = `id, job_id, section_id, status, prompt_hash, prompt_text,
	rewritten_text, model_name, tokens_completion, duration_ms, attempt_number,
	error_message, created_at, updated_at`

// GetRewrite retrieves a rewrite by ID.
func (s *jobStore) GetRewrite(ctx context.Context, id string) (*domain.SectionRewrite, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+rewriteColumns+" FROM section_rewrites WHERE id = ?", id)

	var rw domain.SectionRewrite
	var status string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&rw.ID, &rw.JobID, &rw.SectionID, &status, &rw.PromptHash,
		&rw.PromptText, &rw.RewrittenText, &rw.ModelName, &rw.TokensCompletion,
		&rw.DurationMs, &rw.AttemptNumber, &rw.ErrorMessage, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning rewrite: %w", err)
	}

	rw.Status = domain.RewriteStatus(status)
	if createdAt.Valid {
		rw.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rw.UpdatedAt = updatedAt.Time
	}

	return &rw, nil
}

// ListRewrites returns a job's rewrites ordered by the referenced section's
// sequence number. Rewrites whose section has vanished sort last.
func (s *jobStore) ListRewrites(ctx context.Context, jobID string) ([]domain.SectionRewrite, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT r.id, r.job_id, r.section_id, r.status, r.prompt_hash, r.prompt_text,
			r.rewritten_text, r.model_name, r.tokens_completion, r.duration_ms,
			r.attempt_number, r.error_message, r.created_at, r.updated_at
		FROM section_rewrites r
		LEFT JOIN sections s ON s.id = r.section_id
		WHERE r.job_id = ?
		ORDER BY COALESCE(s.sequence_no, 1000000000), r.created_at
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying rewrites: %w", err)
	}
	defer rows.Close()

	var rewrites []domain.SectionRewrite //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rw domain.SectionRewrite
		var status string
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&rw.ID, &rw.JobID, &rw.SectionID, &status, &rw.PromptHash,
			&rw.PromptText, &rw.RewrittenText, &rw.ModelName, &rw.TokensCompletion,
			&rw.DurationMs, &rw.AttemptNumber, &rw.ErrorMessage, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning rewrite: %w", err)
		}

		rw.Status = domain.RewriteStatus(status)
		if createdAt.Valid {
			rw.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			rw.UpdatedAt = updatedAt.Time
		}
		rewrites = append(rewrites, rw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rewrites: %w", err)
	}

	return rewrites, nil
}

// scanJob scans a single job row.
func scanJob(row *sql.Row) (*domain.RewriteJob, error) {
	var job domain.RewriteJob
	var status string
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&job.ID, &job.DocumentID, &job.RulesetID, &status, &job.ErrorMessage,
		&job.TotalSections, &job.CompletedSections, &job.CreatedBy, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	if createdAt.Valid {
		job.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		job.UpdatedAt = updatedAt.Time
	}

	return &job, nil
}

// scanJobRows scans a job from *sql.Rows.
func scanJobRows(rows *sql.Rows) (*domain.RewriteJob, error) {
	var job domain.RewriteJob
	var status string
	var createdAt, updatedAt sql.NullTime

	if err := rows.Scan(&job.ID, &job.DocumentID, &job.RulesetID, &status, &job.ErrorMessage,
		&job.TotalSections, &job.CompletedSections, &job.CreatedBy, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	if createdAt.Valid {
		job.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		job.UpdatedAt = updatedAt.Time
	}

	return &job, nil
}

// ==================== Review Store ====================

// reviewStore implements driven.ReviewStore.
type reviewStore struct {
	store *Store
}

var _ driven.ReviewStore = (*reviewStore)(nil)

// SaveReview stores or updates a review.
func (s *reviewStore) SaveReview(ctx context.Context, review *domain.Review) error {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	if review.UpdatedAt.IsZero() {
		review.UpdatedAt = review.CreatedAt
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO reviews
			(id, rewrite_id, reviewer_id, status, edited_text, diff_json,
			 risk_override_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reviewer_id = excluded.reviewer_id,
			status = excluded.status,
			edited_text = excluded.edited_text,
			diff_json = excluded.diff_json,
			risk_override_reason = excluded.risk_override_reason,
			updated_at = excluded.updated_at
	`, review.ID, review.RewriteID, review.ReviewerID, string(review.Status),
		review.EditedText, review.DiffJSON, review.RiskOverrideReason,
		review.CreatedAt, review.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving review: %w", err)
	}
	return nil
}

const reviewColumns = `id, rewrite_id, reviewer_id, status, edited_text,
	diff_json, risk_override_reason, created_at, updated_at`

// GetReview retrieves a review by ID.
func (s *reviewStore) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE id = ?", id)

	return scanReview(row)
}

// GetReviewByRewrite retrieves the review attached to a rewrite, or nil when
// none exists.
func (s *reviewStore) GetReviewByRewrite(ctx context.Context, rewriteID string) (*domain.Review, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE rewrite_id = ?", rewriteID)

	review, err := scanReview(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // Unreviewed rewrite is valid
	}
	return review, err
}

// scanReview scans a single review row.
func scanReview(row *sql.Row) (*domain.Review, error) {
	var review domain.Review
	var status string
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&review.ID, &review.RewriteID, &review.ReviewerID, &status,
		&review.EditedText, &review.DiffJSON, &review.RiskOverrideReason,
		&createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning review: %w", err)
	}

	review.Status = domain.ReviewStatus(status)
	if createdAt.Valid {
		review.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		review.UpdatedAt = updatedAt.Time
	}

	return &review, nil
}

// ==================== Finding Store ====================

// findingStore implements driven.FindingStore.
type findingStore struct {
	store *Store
}

var _ driven.FindingStore = (*findingStore)(nil)

// SaveFindings appends findings for a rewrite. Findings are immutable.
func (s *findingStore) SaveFindings(ctx context.Context, findings []domain.RiskFinding) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risk_findings (id, rewrite_id, severity, category, description, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, f.ID, f.RewriteID, string(f.Severity),
			f.Category, f.Description, f.Score, f.CreatedAt); err != nil {
			return fmt.Errorf("saving finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListFindings returns a rewrite's findings in creation order.
func (s *findingStore) ListFindings(ctx context.Context, rewriteID string) ([]domain.RiskFinding, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, rewrite_id, severity, category, description, score, created_at
		FROM risk_findings WHERE rewrite_id = ?
		ORDER BY seq
	`, rewriteID)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var findings []domain.RiskFinding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var f domain.RiskFinding
		var severity string
		var createdAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.RewriteID, &severity, &f.Category,
			&f.Description, &f.Score, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}

		f.Severity = domain.RiskSeverity(severity)
		if createdAt.Valid {
			f.CreatedAt = createdAt.Time
		}
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}

	return findings, nil
}

// ==================== Audit Store ====================

// auditStore implements driven.AuditStore. Event timestamps are stored as
// RFC 3339 text so the hash chain verifies against the exact instant that
// was hashed, including sub-second precision.
type auditStore struct {
	store *Store
}

var _ driven.AuditStore = (*auditStore)(nil)

// AppendEvent inserts a new audit event. Events are immutable.
func (s *auditStore) AppendEvent(ctx context.Context, event *domain.AuditEvent) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, event_type, actor_id, actor_username, entity_type, entity_id,
			 payload_json, event_hash, prev_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.EventType, event.ActorID, event.ActorUsername,
		event.EntityType, event.EntityID, event.PayloadJSON, event.EventHash,
		event.PrevHash, event.CreatedAt.UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

const auditColumns = `id, event_type, actor_id, actor_username, entity_type,
	entity_id, payload_json, event_hash, prev_hash, created_at`

// LastEvent returns the most recently created event, or nil when the chain
// is empty.
func (s *auditStore) LastEvent(ctx context.Context) (*domain.AuditEvent, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+auditColumns+" FROM audit_events ORDER BY seq DESC LIMIT 1")

	event, err := scanAuditEvent(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // Empty chain is valid
	}
	return event, err
}

// ListEvents returns all events in creation order.
func (s *auditStore) ListEvents(ctx context.Context) ([]domain.AuditEvent, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_events ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent //nolint:prealloc // size unknown from query
	for rows.Next() {
		var event domain.AuditEvent
		var createdAt string
		if err := rows.Scan(&event.ID, &event.EventType, &event.ActorID, &event.ActorUsername,
			&event.EntityType, &event.EntityID, &event.PayloadJSON, &event.EventHash,
			&event.PrevHash, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp: %w", err)
		}
		event.CreatedAt = ts
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit events: %w", err)
	}

	return events, nil
}

// scanAuditEvent scans a single audit event row.
func scanAuditEvent(row *sql.Row) (*domain.AuditEvent, error) {
	var event domain.AuditEvent
	var createdAt string

	if err := row.Scan(&event.ID, &event.EventType, &event.ActorID, &event.ActorUsername,
		&event.EntityType, &event.EntityID, &event.PayloadJSON, &event.EventHash,
		&event.PrevHash, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning audit event: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing audit timestamp: %w", err)
	}
	event.CreatedAt = ts

	return &event, nil
}
