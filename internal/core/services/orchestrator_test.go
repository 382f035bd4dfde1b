package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillwise/fillwise/internal/adapters/driven/storage/memory"
	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

type fakeLLM struct {
	response  string
	streamErr error
	healthErr error
	perCall   []string
	calls     int
}

func (f *fakeLLM) Complete(context.Context, string, string) (*driven.CompletionResponse, error) {
	return &driven.CompletionResponse{Content: f.response, Model: f.ModelName()}, nil
}

func (f *fakeLLM) StreamComplete(_ context.Context, _, _ string, onToken func(string)) error {
	f.calls++
	if f.streamErr != nil {
		return f.streamErr
	}
	response := f.response
	if len(f.perCall) > 0 {
		response = f.perCall[(f.calls-1)%len(f.perCall)]
	}
	for _, word := range strings.SplitAfter(response, " ") {
		onToken(word)
	}
	return nil
}

func (f *fakeLLM) HealthCheck(context.Context) error { return f.healthErr }
func (f *fakeLLM) ModelName() string                 { return "test-model" }

type orchestratorFixture struct {
	svc      *Orchestrator
	docStore *memory.DocumentStore
	jobStore *memory.JobStore
	findings *memory.FindingStore
	llm      *fakeLLM
	doc      *domain.Document
	ruleset  *domain.Ruleset
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	ctx := context.Background()

	docStore := memory.NewDocumentStore()
	jobStore := memory.NewJobStore()
	rulesetStore := memory.NewRulesetStore()
	findings := memory.NewFindingStore()
	llm := &fakeLLM{response: "The tenant must pay the rent monthly."}

	cfg := domain.DefaultConfig()
	cfg.RewriteTimeout = 5 * time.Second

	doc := &domain.Document{
		ID:     "doc-1",
		Status: domain.DocumentMapped,
	}
	require.NoError(t, docStore.SaveDocument(ctx, doc))
	require.NoError(t, docStore.SaveSections(ctx, []domain.Section{
		{ID: "sec-1", DocumentID: doc.ID, SequenceNo: 1, Type: domain.SectionClause,
			Heading: "1. Rent", OriginalText: "The Tenant shall pay the rent monthly."},
		{ID: "sec-2", DocumentID: doc.ID, SequenceNo: 2, Type: domain.SectionClause,
			Heading: "2. Repairs", OriginalText: "The Tenant shall keep the premises in repair."},
	}))

	ruleset := &domain.Ruleset{
		ID: "rs-1", Name: "Plain English", Version: "1.0", Active: true,
		Rules: []domain.Rule{{ID: "plain", Name: "Plain", Instruction: "Rewrite in plain English."}},
	}
	require.NoError(t, rulesetStore.SaveRuleset(ctx, ruleset))

	svc := NewOrchestrator(jobStore, docStore, rulesetStore, findings, llm,
		NewAuditService(memory.NewAuditStore()), cfg)
	return &orchestratorFixture{svc: svc, docStore: docStore, jobStore: jobStore,
		findings: findings, llm: llm, doc: doc, ruleset: ruleset}
}

func drain(t *testing.T, ch <-chan domain.ProgressUpdate) []domain.ProgressUpdate {
	t.Helper()
	var updates []domain.ProgressUpdate
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return updates
			}
			updates = append(updates, u)
		case <-timeout:
			t.Fatal("progress channel never closed")
		}
	}
}

func TestCreateSchedulesRewritesInSequenceOrder(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	job, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	require.NoError(t, err)

	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, 2, job.TotalSections)
	assert.Zero(t, job.CompletedSections)

	rewrites, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, rewrites, 2)
	assert.Equal(t, "sec-1", rewrites[0].SectionID)
	assert.Equal(t, "sec-2", rewrites[1].SectionID)
	assert.Equal(t, domain.RewritePending, rewrites[0].Status)
	assert.Equal(t, "test-model", rewrites[0].ModelName)
}

func TestCreateWithSectionSubset(t *testing.T) {
	f := newOrchestratorFixture(t)

	job, err := f.svc.Create(context.Background(), f.doc.ID, f.ruleset.ID, []string{"sec-2"}, "counsel")
	require.NoError(t, err)
	assert.Equal(t, 1, job.TotalSections)
}

func TestCreateRejectsUnmappedDocument(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.doc.Status = domain.DocumentPending
	require.NoError(t, f.docStore.SaveDocument(ctx, f.doc))

	_, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	assert.ErrorIs(t, err, domain.ErrDocumentNotReady)
}

func TestCreateRejectsInactiveRuleset(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.ruleset.Active = false
	rulesetStore := memory.NewRulesetStore()
	require.NoError(t, rulesetStore.SaveRuleset(ctx, f.ruleset))
	svc := NewOrchestrator(f.jobStore, f.docStore, rulesetStore, f.findings, f.llm,
		NewAuditService(memory.NewAuditStore()), domain.DefaultConfig())

	_, err := svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	assert.ErrorIs(t, err, domain.ErrRulesetInactive)
}

func TestCreateRejectsWhenLLMUnavailable(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.llm.healthErr = errors.New("connection refused")

	_, err := f.svc.Create(context.Background(), f.doc.ID, f.ruleset.ID, nil, "counsel")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestCreateRejectsSecondRunningJob(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.jobStore.SaveJob(ctx, &domain.RewriteJob{
		ID: "other", DocumentID: f.doc.ID, Status: domain.JobRunning,
	}))

	_, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	assert.ErrorIs(t, err, domain.ErrJobAlreadyRunning)
}

func TestRunCompletesJobAndStoresCleanText(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	f.llm.response = "The tenant must pay the rent monthly.\n\nAUDIT_JSON: {\"rules_applied\": [\"plain\"], \"confidence\": 0.9}"

	job, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	require.NoError(t, err)

	ch, err := f.svc.Run(ctx, job.ID, "counsel")
	require.NoError(t, err)
	updates := drain(t, ch)

	final, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, final.Status)
	assert.Equal(t, 2, final.CompletedSections)

	rewrites, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)
	for _, rw := range rewrites {
		assert.Equal(t, domain.RewriteCompleted, rw.Status)
		assert.Equal(t, "The tenant must pay the rent monthly.", rw.RewrittenText)
		assert.NotContains(t, rw.RewrittenText, "AUDIT_JSON")
		assert.NotEmpty(t, rw.PromptHash)
		assert.Positive(t, rw.TokensCompletion)
		assert.Equal(t, 1, rw.AttemptNumber)
	}

	last := updates[len(updates)-1]
	assert.True(t, last.Done)
	assert.Equal(t, 2, last.CompletedSections)

	tokenSeen := false
	for _, u := range updates {
		if u.Token != "" {
			tokenSeen = true
		}
	}
	assert.True(t, tokenSeen)
}

func TestRunRecordsRiskFindings(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	// Shares no vocabulary with the original, so semantic deviation fires.
	f.llm.response = "Completely different text about bananas and tropical fruit in general."

	job, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, []string{"sec-1"}, "counsel")
	require.NoError(t, err)
	ch, err := f.svc.Run(ctx, job.ID, "counsel")
	require.NoError(t, err)
	drain(t, ch)

	rewrites, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, rewrites, 1)

	findings, err := f.findings.ListFindings(ctx, rewrites[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, findings)
	for _, finding := range findings {
		assert.Equal(t, rewrites[0].ID, finding.RewriteID)
		assert.NotEmpty(t, finding.ID)
	}
}

func TestRunMarksJobFailedWhenRewriteFails(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	f.llm.streamErr = errors.New("model exploded")

	job, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	require.NoError(t, err)
	ch, err := f.svc.Run(ctx, job.ID, "counsel")
	require.NoError(t, err)
	updates := drain(t, ch)

	final, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "2 section(s) failed")

	failedSeen := false
	for _, u := range updates {
		if u.Status == domain.RewriteFailed {
			failedSeen = true
			assert.Contains(t, u.Error, "model exploded")
		}
	}
	assert.True(t, failedSeen)
}

func TestRunRejectsNonStartableJob(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	job, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	require.NoError(t, err)
	ch, err := f.svc.Run(ctx, job.ID, "counsel")
	require.NoError(t, err)
	drain(t, ch)

	_, err = f.svc.Run(ctx, job.ID, "counsel")
	assert.ErrorIs(t, err, domain.ErrJobNotStartable)
}

func TestRestartResetsFailedRewritesAndRebasesCounter(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	f.llm.perCall = []string{"ok first section rewrite output"}

	job, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	require.NoError(t, err)

	// First run: both rewrites fail.
	f.llm.streamErr = errors.New("offline")
	ch, err := f.svc.Run(ctx, job.ID, "counsel")
	require.NoError(t, err)
	drain(t, ch)

	restarted, err := f.svc.Restart(ctx, job.ID, "counsel")
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, restarted.Status)
	assert.Zero(t, restarted.CompletedSections)
	assert.Empty(t, restarted.ErrorMessage)

	rewrites, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)
	for _, rw := range rewrites {
		assert.Equal(t, domain.RewritePending, rw.Status)
		assert.Empty(t, rw.ErrorMessage)
	}

	// Second run succeeds and re-counts from the rebased base.
	f.llm.streamErr = nil
	ch, err = f.svc.Run(ctx, job.ID, "counsel")
	require.NoError(t, err)
	drain(t, ch)

	final, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, final.Status)
	assert.Equal(t, 2, final.CompletedSections)

	finalRewrites, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, finalRewrites[0].AttemptNumber)
}

func TestRestartRejectsRunningJob(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.jobStore.SaveJob(ctx, &domain.RewriteJob{
		ID: "job-r", DocumentID: f.doc.ID, Status: domain.JobRunning,
	}))

	_, err := f.svc.Restart(ctx, "job-r", "counsel")
	assert.ErrorIs(t, err, domain.ErrJobAlreadyRunning)
}

func TestRestartRebasesOnPartialCompletion(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	job, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	require.NoError(t, err)

	rewrites, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)

	rewrites[0].Status = domain.RewriteCompleted
	require.NoError(t, f.jobStore.SaveRewrite(ctx, &rewrites[0]))
	rewrites[1].Status = domain.RewriteFailed
	require.NoError(t, f.jobStore.SaveRewrite(ctx, &rewrites[1]))
	job.Status = domain.JobFailed
	require.NoError(t, f.jobStore.SaveJob(ctx, job))

	restarted, err := f.svc.Restart(ctx, job.ID, "counsel")
	require.NoError(t, err)
	assert.Equal(t, 1, restarted.CompletedSections)

	after, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RewriteCompleted, after[0].Status)
	assert.Equal(t, domain.RewritePending, after[1].Status)
}

func TestRunSkipsRewriteWhoseSectionVanished(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	job, err := f.svc.Create(ctx, f.doc.ID, f.ruleset.ID, nil, "counsel")
	require.NoError(t, err)

	rewrites, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)
	rewrites[0].SectionID = "vanished"
	require.NoError(t, f.jobStore.SaveRewrite(ctx, &rewrites[0]))

	ch, err := f.svc.Run(ctx, job.ID, "counsel")
	require.NoError(t, err)
	drain(t, ch)

	after, err := f.svc.Rewrites(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RewriteSkipped, after[0].Status)
	assert.Equal(t, domain.RewriteCompleted, after[1].Status)

	final, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, final.Status)
}
