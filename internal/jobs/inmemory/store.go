package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/commerce-analytics/internal/jobs"
)

// Store keeps job history in process memory; it is lost on restart.
type Store struct {
	mu   sync.RWMutex
	byID map[string]jobs.IngestJob
}

func NewStore() *Store {
	return &Store{byID: make(map[string]jobs.IngestJob)}
}

func (s *Store) SaveJob(_ context.Context, job *jobs.IngestJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	s.byID[job.JobID] = *job
	s.mu.Unlock()
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.IngestJob, error) {
	s.mu.RLock()
	job, ok := s.byID[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}
	return &job, nil
}

func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.IngestJob, error) {
	s.mu.RLock()
	matched := make([]jobs.IngestJob, 0, len(s.byID))
	for _, job := range s.byID {
		if filter.Status == "" || job.Status == filter.Status {
			matched = append(matched, job)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].JobID < matched[j].JobID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	lo := min(max(filter.Offset, 0), len(matched))
	hi := len(matched)
	if filter.Limit > 0 {
		hi = min(lo+filter.Limit, hi)
	}

	out := make([]*jobs.IngestJob, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, &matched[i])
	}
	return out, nil
}

func (s *Store) FinishJob(_ context.Context, jobID string, status jobs.JobStatus, errMsg string) error {
	if !status.Finished() {
		return fmt.Errorf("FinishJob: %q is not a finished status", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("FinishJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	now := time.Now().UTC()
	job.Status = status
	job.CompletedAt = &now
	if errMsg != "" {
		job.Error = errMsg
	}
	s.byID[jobID] = job
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
