package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore. Rewrites keep
// their creation order, which the orchestrator establishes as section
// sequence order.
type JobStore struct {
	mu       sync.RWMutex
	jobs     map[string]domain.RewriteJob
	rewrites map[string][]domain.SectionRewrite
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:     make(map[string]domain.RewriteJob),
		rewrites: make(map[string][]domain.SectionRewrite),
	}
}

// SaveJob stores or updates a job.
func (s *JobStore) SaveJob(_ context.Context, job *domain.RewriteJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

// GetJob retrieves a job by ID.
func (s *JobStore) GetJob(_ context.Context, id string) (*domain.RewriteJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// ListJobs returns jobs, optionally filtered by document, newest first.
func (s *JobStore) ListJobs(_ context.Context, documentID string) ([]domain.RewriteJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.RewriteJob
	for id := range s.jobs {
		job := s.jobs[id]
		if documentID == "" || job.DocumentID == documentID {
			result = append(result, job)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// RunningJob returns the RUNNING job for a document, or nil when none.
func (s *JobStore) RunningJob(_ context.Context, documentID string) (*domain.RewriteJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.jobs {
		job := s.jobs[id]
		if job.DocumentID == documentID && job.Status == domain.JobRunning {
			return &job, nil
		}
	}
	return nil, nil
}

// SaveRewrite stores or updates a section rewrite.
func (s *JobStore) SaveRewrite(_ context.Context, rw *domain.SectionRewrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.rewrites[rw.JobID]
	for i := range list {
		if list[i].ID == rw.ID {
			list[i] = *rw
			return nil
		}
	}
	s.rewrites[rw.JobID] = append(list, *rw)
	return nil
}

// GetRewrite retrieves a rewrite by ID.
func (s *JobStore) GetRewrite(_ context.Context, id string) (*domain.SectionRewrite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, list := range s.rewrites {
		for _, rw := range list {
			if rw.ID == id {
				return &rw, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// ListRewrites returns a job's rewrites in creation order.
func (s *JobStore) ListRewrites(_ context.Context, jobID string) ([]domain.SectionRewrite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SectionRewrite(nil), s.rewrites[jobID]...), nil
}
