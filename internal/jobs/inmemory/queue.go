package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/commerce-analytics/internal/jobs"
	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/metrics"
)

// Queue is a channel-backed job queue with a single consumer. Each ingestion
// run replaces the stored batch, so two runs must never overlap.
type Queue struct {
	pending chan *jobs.IngestJob
	done    chan struct{}
	wg      sync.WaitGroup
	sends   sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool

	store   jobs.JobStore
	backoff time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithBackoff sets the base retry delay; the n-th retry waits n times it.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// NewQueue creates a queue holding up to bufferSize waiting jobs. store may be
// nil, in which case job state is not recorded.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		pending: make(chan *jobs.IngestJob, bufferSize),
		done:    make(chan struct{}),
		store:   store,
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishIngest assigns defaults to job, records it and enqueues it. It
// blocks while the buffer is full, until ctx is done or the queue stops.
func (q *Queue) PublishIngest(ctx context.Context, job *jobs.IngestJob) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	// Stop waits on sends before draining the buffer.
	q.sends.Add(1)
	q.mu.RUnlock()
	defer q.sends.Done()

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	if err := q.save(ctx, job); err != nil {
		return fmt.Errorf("PublishIngest: save job: %w", err)
	}

	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		q.fail(context.WithoutCancel(ctx), job.JobID, ctx.Err())
		return ctx.Err()
	case <-q.done:
		q.fail(ctx, job.JobID, jobs.ErrQueueClosed)
		return jobs.ErrQueueClosed
	}
}

// Start launches the consumer. Calling it twice is an error: a second
// consumer would let runs overlap.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}
	if q.started {
		return fmt.Errorf("Start: queue already has a consumer")
	}
	q.started = true

	q.wg.Add(1)
	go q.consume(ctx, handler)
	return nil
}

func (q *Queue) consume(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case job := <-q.pending:
			select {
			case <-q.done:
				q.fail(ctx, job.JobID, jobs.ErrQueueClosed)
				return
			default:
			}
			q.run(ctx, job, handler)
		}
	}
}

func (q *Queue) run(ctx context.Context, job *jobs.IngestJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx)

	metrics.IngestJobsInFlight.Inc()
	defer metrics.IngestJobsInFlight.Dec()

	started := time.Now().UTC()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	q.saveOrLog(ctx, job)

	err := handler(ctx, job)

	finished := time.Now().UTC()
	job.CompletedAt = &finished

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Str("job_id", job.JobID).Dur("duration", finished.Sub(started)).Msg("Ingestion job completed")
	case job.RetryCount < job.MaxRetries:
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		job.RetryCount++
		log.Warn().Err(err).Str("job_id", job.JobID).Int("retry", job.RetryCount).Msg("Ingestion job failed, retrying")
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Ingestion job failed")
	}
	q.saveOrLog(ctx, job)

	if job.Status != jobs.JobStatusRetrying {
		return
	}

	again := *job
	again.Status = jobs.JobStatusPending
	again.StartedAt = nil
	again.CompletedAt = nil
	time.AfterFunc(time.Duration(job.RetryCount)*q.backoff, func() {
		if err := q.PublishIngest(ctx, &again); err != nil {
			q.fail(ctx, again.JobID, err)
		}
	})
}

// Stop closes the queue, waits for the running job and marks every job still
// waiting in the buffer as failed.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		q.sends.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case job := <-q.pending:
			q.fail(ctx, job.JobID, jobs.ErrQueueClosed)
		default:
			return nil
		}
	}
}

func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

func (q *Queue) save(ctx context.Context, job *jobs.IngestJob) error {
	if q.store == nil {
		return nil
	}
	return q.store.SaveJob(ctx, job)
}

func (q *Queue) saveOrLog(ctx context.Context, job *jobs.IngestJob) {
	if err := q.save(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to record job state")
	}
}

func (q *Queue) fail(ctx context.Context, jobID string, cause error) {
	if q.store == nil {
		return
	}
	if err := q.store.FinishJob(ctx, jobID, jobs.JobStatusFailed, cause.Error()); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job as failed")
	}
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
