package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
	"github.com/fillwise/fillwise/internal/logger"
	"github.com/fillwise/fillwise/internal/prompt"
	"github.com/fillwise/fillwise/internal/risk"
)

// Ensure Orchestrator implements the interface.
var _ driving.JobService = (*Orchestrator)(nil)

// promptTextLimit caps the stored serialized prompt.
const promptTextLimit = 65000

// progressBuffer sizes the update channel. Token events beyond a stalled
// subscriber's buffer are dropped; persistence never waits on delivery.
const progressBuffer = 256

// Orchestrator schedules and executes rewrite jobs. Rewrites run strictly in
// section sequence order; progress and token events are delivered best-effort
// to the channel returned by Run.
type Orchestrator struct {
	jobStore     driven.JobStore
	docStore     driven.DocumentStore
	rulesetStore driven.RulesetStore
	findingStore driven.FindingStore
	llm          driven.LLMClient
	audit        driving.AuditService
	cfg          domain.Config
}

// NewOrchestrator creates a new rewrite orchestrator.
func NewOrchestrator(
	jobStore driven.JobStore,
	docStore driven.DocumentStore,
	rulesetStore driven.RulesetStore,
	findingStore driven.FindingStore,
	llm driven.LLMClient,
	audit driving.AuditService,
	cfg domain.Config,
) *Orchestrator {
	return &Orchestrator{
		jobStore:     jobStore,
		docStore:     docStore,
		rulesetStore: rulesetStore,
		findingStore: findingStore,
		llm:          llm,
		audit:        audit,
		cfg:          cfg,
	}
}

// Create validates preconditions and schedules a PENDING job with one
// PENDING rewrite per target section.
func (s *Orchestrator) Create(ctx context.Context, documentID, rulesetID string, sectionIDs []string, actor string) (*domain.RewriteJob, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, domain.ErrNotFound
	}
	if doc.Status != domain.DocumentMapped {
		return nil, fmt.Errorf("%w: document is %s, a job requires %s",
			domain.ErrDocumentNotReady, doc.Status, domain.DocumentMapped)
	}

	ruleset, err := s.rulesetStore.GetRuleset(ctx, rulesetID)
	if err != nil {
		return nil, err
	}
	if ruleset.Deleted {
		return nil, domain.ErrNotFound
	}
	if !ruleset.Active {
		return nil, fmt.Errorf("%w: activate ruleset %s %s before use",
			domain.ErrRulesetInactive, ruleset.Name, ruleset.Version)
	}

	if err := s.llm.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	if running, err := s.jobStore.RunningJob(ctx, documentID); err != nil {
		return nil, err
	} else if running != nil {
		return nil, fmt.Errorf("%w: job %s is already running for this document",
			domain.ErrJobAlreadyRunning, running.ID)
	}

	sections, err := s.docStore.ListSections(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(sectionIDs) > 0 {
		wanted := make(map[string]struct{}, len(sectionIDs))
		for _, id := range sectionIDs {
			wanted[id] = struct{}{}
		}
		filtered := sections[:0]
		for _, sec := range sections {
			if _, ok := wanted[sec.ID]; ok {
				filtered = append(filtered, sec)
			}
		}
		sections = filtered
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no sections found to rewrite", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	job := &domain.RewriteJob{
		ID:            uuid.New().String(),
		DocumentID:    documentID,
		RulesetID:     rulesetID,
		Status:        domain.JobPending,
		TotalSections: len(sections),
		CreatedBy:     actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.jobStore.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	for _, sec := range sections {
		rw := &domain.SectionRewrite{
			ID:        uuid.New().String(),
			JobID:     job.ID,
			SectionID: sec.ID,
			Status:    domain.RewritePending,
			ModelName: s.llm.ModelName(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.jobStore.SaveRewrite(ctx, rw); err != nil {
			return nil, err
		}
	}

	s.auditLog(ctx, actor, "job.created", job.ID, map[string]any{
		"document_id": documentID,
		"ruleset_id":  rulesetID,
		"sections":    len(sections),
	})
	logger.Get().Info("job created", "job_id", job.ID, "sections", len(sections))
	return job, nil
}

// Run starts executing a startable job on a background goroutine. The
// returned channel delivers progress frames and closes once the job reaches
// a terminal state.
func (s *Orchestrator) Run(ctx context.Context, jobID, actor string) (<-chan domain.ProgressUpdate, error) {
	job, err := s.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Startable() {
		return nil, fmt.Errorf("%w: job is %s", domain.ErrJobNotStartable, job.Status)
	}
	if running, err := s.jobStore.RunningJob(ctx, job.DocumentID); err != nil {
		return nil, err
	} else if running != nil && running.ID != job.ID {
		return nil, fmt.Errorf("%w: job %s is already running for this document",
			domain.ErrJobAlreadyRunning, running.ID)
	}

	ruleset, err := s.rulesetStore.GetRuleset(ctx, job.RulesetID)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobRunning
	job.ErrorMessage = ""
	job.UpdatedAt = time.Now().UTC()
	if err := s.jobStore.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	updates := make(chan domain.ProgressUpdate, progressBuffer)
	go s.execute(ctx, job, ruleset, actor, updates)
	return updates, nil
}

func (s *Orchestrator) execute(ctx context.Context, job *domain.RewriteJob, ruleset *domain.Ruleset, actor string, updates chan<- domain.ProgressUpdate) {
	defer close(updates)
	log := logger.Get().With("job_id", job.ID)

	rewrites, err := s.jobStore.ListRewrites(ctx, job.ID)
	if err != nil {
		s.failJob(ctx, job, err.Error())
		return
	}

	var pending []domain.SectionRewrite
	for _, rw := range rewrites {
		if rw.Status == domain.RewritePending {
			pending = append(pending, rw)
		}
	}
	log.Info("job started", "pending_rewrites", len(pending))

	for i := range pending {
		if ctx.Err() != nil {
			s.failJob(ctx, job, "run cancelled")
			return
		}
		s.processRewrite(ctx, job, ruleset, &pending[i], updates)

		job.CompletedSections++
		job.UpdatedAt = time.Now().UTC()
		if err := s.jobStore.SaveJob(ctx, job); err != nil {
			log.Error("cannot persist job progress", "error", err)
		}
	}

	final, err := s.jobStore.ListRewrites(ctx, job.ID)
	if err != nil {
		s.failJob(ctx, job, err.Error())
		return
	}
	failures := 0
	for _, rw := range final {
		if rw.Status == domain.RewriteFailed {
			failures++
		}
	}

	if failures > 0 {
		job.Status = domain.JobFailed
		job.ErrorMessage = fmt.Sprintf("%d section(s) failed to rewrite.", failures)
	} else {
		job.Status = domain.JobCompleted
		job.ErrorMessage = ""
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.jobStore.SaveJob(ctx, job); err != nil {
		log.Error("cannot persist final job status", "error", err)
	}

	s.auditLog(ctx, actor, "job."+string(job.Status), job.ID, map[string]any{
		"completed_sections": job.CompletedSections,
		"total_sections":     job.TotalSections,
		"failures":           failures,
	})
	log.Info("job finished", "status", job.Status)

	s.emit(ctx, updates, domain.ProgressUpdate{
		JobID:             job.ID,
		CompletedSections: job.CompletedSections,
		TotalSections:     job.TotalSections,
		Error:             job.ErrorMessage,
		Done:              true,
	})
}

func (s *Orchestrator) processRewrite(ctx context.Context, job *domain.RewriteJob, ruleset *domain.Ruleset, rw *domain.SectionRewrite, updates chan<- domain.ProgressUpdate) {
	log := logger.Get().With("job_id", job.ID, "rewrite_id", rw.ID)

	section, err := s.docStore.GetSection(ctx, rw.SectionID)
	if err != nil {
		rw.Status = domain.RewriteSkipped
		rw.ErrorMessage = "referenced section no longer exists"
		rw.UpdatedAt = time.Now().UTC()
		if err := s.jobStore.SaveRewrite(ctx, rw); err != nil {
			log.Error("cannot persist skipped rewrite", "error", err)
		}
		log.Warn("rewrite skipped, section missing", "section_id", rw.SectionID)
		return
	}

	rw.Status = domain.RewriteRunning
	rw.AttemptNumber++
	rw.UpdatedAt = time.Now().UTC()
	if err := s.jobStore.SaveRewrite(ctx, rw); err != nil {
		log.Error("cannot persist running rewrite", "error", err)
	}

	s.emit(ctx, updates, domain.ProgressUpdate{
		JobID:             job.ID,
		SectionID:         rw.SectionID,
		Status:            domain.RewriteRunning,
		CompletedSections: job.CompletedSections,
		TotalSections:     job.TotalSections,
	})

	compiled := prompt.Compile(ruleset.Rules, section.Type, section.OriginalText, section.Heading, ruleset.Jurisdiction)
	rw.PromptHash = compiled.Hash
	if raw, err := json.Marshal(compiled); err == nil {
		rw.PromptText = truncate(string(raw), promptTextLimit)
	}
	rw.ModelName = s.llm.ModelName()
	if err := s.jobStore.SaveRewrite(ctx, rw); err != nil {
		log.Error("cannot persist compiled prompt", "error", err)
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RewriteTimeout)
	defer cancel()

	start := time.Now()
	var raw []byte
	tokenCount := 0
	streamErr := s.llm.StreamComplete(rctx, compiled.System, compiled.User, func(token string) {
		raw = append(raw, token...)
		tokenCount++
		s.emit(ctx, updates, domain.ProgressUpdate{
			JobID:             job.ID,
			SectionID:         rw.SectionID,
			Status:            domain.RewriteRunning,
			Token:             token,
			CompletedSections: job.CompletedSections,
			TotalSections:     job.TotalSections,
		})
	})
	if streamErr != nil {
		if rctx.Err() == context.DeadlineExceeded {
			streamErr = fmt.Errorf("LLM response timed out after %s", s.cfg.RewriteTimeout)
		}
		s.failRewrite(ctx, job, rw, streamErr, updates)
		return
	}

	cleanText, _ := prompt.SplitResponse(string(raw))

	rw.RewrittenText = cleanText
	rw.TokensCompletion = tokenCount
	rw.DurationMs = time.Since(start).Milliseconds()
	rw.Status = domain.RewriteCompleted
	rw.ErrorMessage = ""
	rw.UpdatedAt = time.Now().UTC()
	if err := s.jobStore.SaveRewrite(ctx, rw); err != nil {
		log.Error("cannot persist completed rewrite", "error", err)
	}

	s.persistFindings(ctx, rw.ID, section.OriginalText, cleanText)

	log.Info("rewrite complete", "tokens", tokenCount, "duration_ms", rw.DurationMs)
	s.emit(ctx, updates, domain.ProgressUpdate{
		JobID:             job.ID,
		SectionID:         rw.SectionID,
		Status:            domain.RewriteCompleted,
		CompletedSections: job.CompletedSections + 1,
		TotalSections:     job.TotalSections,
	})
}

func (s *Orchestrator) persistFindings(ctx context.Context, rewriteID, original, rewritten string) {
	findings := risk.Analyze(original, rewritten)
	if len(findings) == 0 {
		return
	}
	now := time.Now().UTC()
	for i := range findings {
		findings[i].ID = uuid.New().String()
		findings[i].RewriteID = rewriteID
		findings[i].CreatedAt = now
	}
	if err := s.findingStore.SaveFindings(ctx, findings); err != nil {
		logger.Get().Error("cannot persist risk findings", "rewrite_id", rewriteID, "error", err)
	}
}

func (s *Orchestrator) failRewrite(ctx context.Context, job *domain.RewriteJob, rw *domain.SectionRewrite, cause error, updates chan<- domain.ProgressUpdate) {
	rw.Status = domain.RewriteFailed
	rw.ErrorMessage = truncate(cause.Error(), errorMessageLimit)
	rw.UpdatedAt = time.Now().UTC()
	if err := s.jobStore.SaveRewrite(ctx, rw); err != nil {
		logger.Get().Error("cannot persist failed rewrite", "rewrite_id", rw.ID, "error", err)
	}
	logger.Get().Error("rewrite failed", "rewrite_id", rw.ID, "error", cause)

	s.emit(ctx, updates, domain.ProgressUpdate{
		JobID:             job.ID,
		SectionID:         rw.SectionID,
		Status:            domain.RewriteFailed,
		Error:             cause.Error(),
		CompletedSections: job.CompletedSections,
		TotalSections:     job.TotalSections,
	})
}

func (s *Orchestrator) failJob(ctx context.Context, job *domain.RewriteJob, message string) {
	job.Status = domain.JobFailed
	job.ErrorMessage = truncate(message, errorMessageLimit)
	job.UpdatedAt = time.Now().UTC()
	if err := s.jobStore.SaveJob(ctx, job); err != nil {
		logger.Get().Error("cannot persist failed job", "job_id", job.ID, "error", err)
	}
}

// emit forwards a progress frame without ever blocking persistence: a frame
// is dropped when the subscriber's buffer is full or the context is gone.
func (s *Orchestrator) emit(ctx context.Context, updates chan<- domain.ProgressUpdate, u domain.ProgressUpdate) {
	select {
	case updates <- u:
	case <-ctx.Done():
	default:
	}
}

// Restart resets FAILED and stale RUNNING rewrites to PENDING and rebases
// the completed counter on rewrites that actually finished. Re-running the
// job only processes the reset subset.
func (s *Orchestrator) Restart(ctx context.Context, jobID, actor string) (*domain.RewriteJob, error) {
	job, err := s.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == domain.JobRunning {
		return nil, fmt.Errorf("%w: wait for completion or cancel first", domain.ErrJobAlreadyRunning)
	}

	rewrites, err := s.jobStore.ListRewrites(ctx, jobID)
	if err != nil {
		return nil, err
	}

	completed := 0
	now := time.Now().UTC()
	for i := range rewrites {
		rw := rewrites[i]
		switch rw.Status {
		case domain.RewriteFailed, domain.RewriteRunning:
			rw.Status = domain.RewritePending
			rw.ErrorMessage = ""
			rw.UpdatedAt = now
			if err := s.jobStore.SaveRewrite(ctx, &rw); err != nil {
				return nil, err
			}
		case domain.RewriteCompleted:
			completed++
		}
	}

	job.Status = domain.JobPending
	job.ErrorMessage = ""
	job.CompletedSections = completed
	job.UpdatedAt = now
	if err := s.jobStore.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	s.auditLog(ctx, actor, "job.restarted", job.ID, map[string]any{
		"restarted_by":       actor,
		"completed_sections": completed,
	})
	logger.Get().Info("job restarted", "job_id", job.ID, "completed_sections", completed)
	return job, nil
}

// Get retrieves a job by ID.
func (s *Orchestrator) Get(ctx context.Context, jobID string) (*domain.RewriteJob, error) {
	return s.jobStore.GetJob(ctx, jobID)
}

// List returns jobs, optionally filtered to one document.
func (s *Orchestrator) List(ctx context.Context, documentID string) ([]domain.RewriteJob, error) {
	return s.jobStore.ListJobs(ctx, documentID)
}

// Rewrites returns a job's rewrites in section order.
func (s *Orchestrator) Rewrites(ctx context.Context, jobID string) ([]domain.SectionRewrite, error) {
	if _, err := s.jobStore.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.jobStore.ListRewrites(ctx, jobID)
}

func (s *Orchestrator) auditLog(ctx context.Context, actor, eventType, entityID string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.Log(ctx, domain.AuditEntry{
		EventType:     eventType,
		ActorUsername: actor,
		EntityType:    "RewriteJob",
		EntityID:      entityID,
		Payload:       payload,
	})
	if err != nil {
		logger.Get().Warn("audit write failed", "event_type", eventType, "error", err)
	}
}
