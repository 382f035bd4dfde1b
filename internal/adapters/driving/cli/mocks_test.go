package cli

import (
	"context"
	"errors"
	"time"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driving"
)

// setupTestServices installs mock services and returns a restore function.
func setupTestServices() func() {
	oldDoc := documentService
	oldRuleset := rulesetService
	oldJob := jobService
	oldReview := reviewService
	oldAssembly := assemblyService
	oldAudit := auditService

	documentService = &mockDocumentService{}
	rulesetService = &mockRulesetService{}
	jobService = &mockJobService{}
	reviewService = &mockReviewService{}
	assemblyService = &mockAssemblyService{}
	auditService = &mockAuditService{}

	return func() {
		documentService = oldDoc
		rulesetService = oldRuleset
		jobService = oldJob
		reviewService = oldReview
		assemblyService = oldAssembly
		auditService = oldAudit
	}
}

// ==================== Document Service ====================

type mockDocumentService struct {
	docs     []domain.Document
	sections []domain.Section
	err      error
}

func (m *mockDocumentService) Upload(_ context.Context, path, _ string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Document{ID: "doc-1", OriginalFilename: path, FileSizeBytes: 12, FileHash: "abc"}, nil
}

func (m *mockDocumentService) Ingest(context.Context, string) error { return m.err }

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Document{ID: id, Status: domain.DocumentMapped, PageCount: 3}, nil
}

func (m *mockDocumentService) List(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockDocumentService) Sections(context.Context, string) ([]domain.Section, error) {
	return m.sections, m.err
}

// ==================== Ruleset Service ====================

type mockRulesetService struct {
	rulesets  []domain.Ruleset
	conflicts []domain.RuleConflict
	err       error
}

func (m *mockRulesetService) Import(context.Context, string, string) (*domain.Ruleset, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Ruleset{ID: "rs-1", Name: "uae-leases", Version: "1.0",
		Rules: []domain.Rule{{ID: "plain-language"}}}, nil
}

func (m *mockRulesetService) Get(_ context.Context, id string) (*domain.Ruleset, error) {
	return &domain.Ruleset{ID: id}, m.err
}

func (m *mockRulesetService) List(context.Context) ([]domain.Ruleset, error) {
	return m.rulesets, m.err
}

func (m *mockRulesetService) Activate(context.Context, string, string) error { return m.err }

func (m *mockRulesetService) Conflicts(context.Context, string) ([]domain.RuleConflict, error) {
	return m.conflicts, m.err
}

// ==================== Job Service ====================

type mockJobService struct {
	jobs     []domain.RewriteJob
	rewrites []domain.SectionRewrite
	updates  []domain.ProgressUpdate
	err      error
}

func (m *mockJobService) Create(_ context.Context, docID, rsID string, _ []string, _ string) (*domain.RewriteJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RewriteJob{ID: "job-1", DocumentID: docID, RulesetID: rsID, TotalSections: 4}, nil
}

func (m *mockJobService) Run(context.Context, string, string) (<-chan domain.ProgressUpdate, error) {
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan domain.ProgressUpdate, len(m.updates))
	for _, u := range m.updates {
		ch <- u
	}
	close(ch)
	return ch, nil
}

func (m *mockJobService) Restart(_ context.Context, id, _ string) (*domain.RewriteJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RewriteJob{ID: id, Status: domain.JobPending, TotalSections: 4, CompletedSections: 2}, nil
}

func (m *mockJobService) Get(_ context.Context, id string) (*domain.RewriteJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RewriteJob{ID: id, Status: domain.JobCompleted, TotalSections: 4, CompletedSections: 4}, nil
}

func (m *mockJobService) List(context.Context, string) ([]domain.RewriteJob, error) {
	return m.jobs, m.err
}

func (m *mockJobService) Rewrites(context.Context, string) ([]domain.SectionRewrite, error) {
	return m.rewrites, m.err
}

// ==================== Review Service ====================

type mockReviewService struct {
	review   *domain.Review
	findings []domain.RiskFinding
	decision driving.ReviewDecision
	err      error
}

func (m *mockReviewService) GetOrCreate(context.Context, string, string) (*domain.Review, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.review != nil {
		return m.review, nil
	}
	return &domain.Review{ID: "rev-1", Status: domain.ReviewPending, DiffJSON: "[]"}, nil
}

func (m *mockReviewService) Decide(_ context.Context, id string, decision driving.ReviewDecision, _ string) (*domain.Review, error) {
	m.decision = decision
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Review{ID: id, Status: decision.Status}, nil
}

func (m *mockReviewService) Get(_ context.Context, id string) (*domain.Review, error) {
	return &domain.Review{ID: id}, m.err
}

func (m *mockReviewService) Findings(context.Context, string) ([]domain.RiskFinding, error) {
	return m.findings, m.err
}

// ==================== Assembly Service ====================

type mockAssemblyService struct {
	path string
	err  error
}

func (m *mockAssemblyService) Assemble(context.Context, string, string) (string, error) {
	return m.path, m.err
}

func (m *mockAssemblyService) LatestExport(context.Context, string) (string, error) {
	if m.path == "" {
		return "", domain.ErrNotFound
	}
	return m.path, m.err
}

// ==================== Audit Service ====================

type mockAuditService struct {
	events   []domain.AuditEvent
	ok       bool
	brokenID string
	err      error
}

func (m *mockAuditService) Log(context.Context, domain.AuditEntry) (*domain.AuditEvent, error) {
	return &domain.AuditEvent{ID: "evt-1", CreatedAt: time.Now()}, m.err
}

func (m *mockAuditService) Verify(context.Context) (bool, string, error) {
	return m.ok, m.brokenID, m.err
}

func (m *mockAuditService) List(context.Context, driving.AuditQuery) ([]domain.AuditEvent, error) {
	return m.events, m.err
}

var errMock = errors.New("mock failure")
