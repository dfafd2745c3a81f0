// Package jobs queues ingestion runs. Runs replace the stored batch, so every
// consumer in this package processes at most one job at a time.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/commerce-analytics/internal/pipeline"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusRetrying:
		return true
	}
	return false
}

// Finished reports whether a job in status s will not run again.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IngestJob is one requested ingestion run over a CSV source.
type IngestJob struct {
	JobID string `json:"job_id"`
	// SourceURI is a local path or a gs:// URI.
	SourceURI   string     `json:"source_uri"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`

	// Result is set once the run has written its batch.
	Result *pipeline.RunResult `json:"result,omitempty"`
}

type Publisher interface {
	PublishIngest(ctx context.Context, job *IngestJob) error
	Close() error
}

type Consumer interface {
	// Start begins consuming jobs; handler is called once per delivery.
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for the in-flight job and fails the ones still queued.
	Stop(ctx context.Context) error
}

// JobHandler runs one job. A non-nil error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job *IngestJob) error

type JobStore interface {
	SaveJob(ctx context.Context, job *IngestJob) error
	GetJob(ctx context.Context, jobID string) (*IngestJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestJob, error)
	// FinishJob moves a job to a finished status and stamps its completion time.
	FinishJob(ctx context.Context, jobID string, status JobStatus, errMsg string) error
}

// JobFilter narrows ListJobs. Zero values mean no restriction.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
