package inmemory

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commerce-analytics/internal/jobs"
	"github.com/dvloznov/commerce-analytics/internal/logger"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.IngestJob {
	t.Helper()
	var got *jobs.IngestJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueue_RunsJobsOneAtATime(t *testing.T) {
	store := NewStore()
	q := NewQueue(8, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running, maxRunning int32
	var mu sync.Mutex
	var order []string

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.IngestJob) error {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		order = append(order, job.SourceURI)
		mu.Unlock()
		atomic.AddInt32(&running, -1)
		return nil
	}))

	ids := make([]string, 0, 3)
	for _, src := range []string{"a.csv", "b.csv", "c.csv"} {
		job := &jobs.IngestJob{SourceURI: src}
		require.NoError(t, q.PublishIngest(ctx, job))
		require.NotEmpty(t, job.JobID)
		ids = append(ids, job.JobID)
	}

	for _, id := range ids {
		done := waitForStatus(t, store, id, jobs.JobStatusCompleted)
		assert.NotNil(t, done.StartedAt)
		assert.NotNil(t, done.CompletedAt)
	}

	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
	mu.Lock()
	assert.Equal(t, []string{"a.csv", "b.csv", "c.csv"}, order)
	mu.Unlock()
}

func TestQueue_FailureWithoutRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.IngestJob) error {
		return errors.New("source missing")
	}))

	job := &jobs.IngestJob{SourceURI: "missing.csv"}
	require.NoError(t, q.PublishIngest(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "source missing", failed.Error)
	assert.Equal(t, 0, failed.RetryCount)
	require.NoError(t, q.Close())
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, store, WithBackoff(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.IngestJob) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	job := &jobs.IngestJob{SourceURI: "flaky.csv", MaxRetries: 2}
	require.NoError(t, q.PublishIngest(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Empty(t, done.Error)
	require.NoError(t, q.Close())
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.PublishIngest(context.Background(), &jobs.IngestJob{})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)

	err = q.Start(context.Background(), func(ctx context.Context, job *jobs.IngestJob) error { return nil })
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
}

func TestQueue_SecondConsumerRejected(t *testing.T) {
	q := NewQueue(1, nil)
	defer q.Close()

	noop := func(ctx context.Context, job *jobs.IngestJob) error { return nil }
	require.NoError(t, q.Start(context.Background(), noop))
	assert.Error(t, q.Start(context.Background(), noop))
}

func TestQueue_StopFailsQueuedJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.IngestJob) error {
		started <- struct{}{}
		<-release
		return nil
	}))

	first := &jobs.IngestJob{SourceURI: "first.csv"}
	require.NoError(t, q.PublishIngest(ctx, first))
	<-started

	queued := &jobs.IngestJob{SourceURI: "queued.csv"}
	require.NoError(t, q.PublishIngest(ctx, queued))

	stopped := make(chan error, 1)
	go func() { stopped <- q.Stop(ctx) }()
	require.Eventually(t, func() bool {
		q.mu.RLock()
		defer q.mu.RUnlock()
		return q.closed
	}, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, <-stopped)

	got, err := store.GetJob(ctx, first.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)

	got, err = store.GetJob(ctx, queued.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, jobs.ErrQueueClosed.Error(), got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestQueue_StopReleasesBlockedPublish(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, store)
	ctx := context.Background()

	first := &jobs.IngestJob{SourceURI: "first.csv"}
	require.NoError(t, q.PublishIngest(ctx, first))

	blocked := &jobs.IngestJob{JobID: "blocked", SourceURI: "blocked.csv"}
	published := make(chan error, 1)
	go func() { published <- q.PublishIngest(ctx, blocked) }()

	// The job is recorded before the send blocks on the full buffer.
	waitForStatus(t, store, blocked.JobID, jobs.JobStatusPending)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))
	assert.ErrorIs(t, <-published, jobs.ErrQueueClosed)

	for _, id := range []string{first.JobID, blocked.JobID} {
		got, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, jobs.JobStatusFailed, got.Status, id)
	}
}

func TestQueue_PublishCanceledWhileFull(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, store)
	defer q.Close()

	require.NoError(t, q.PublishIngest(context.Background(), &jobs.IngestJob{SourceURI: "first.csv"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := &jobs.IngestJob{SourceURI: "late.csv"}
	assert.ErrorIs(t, q.PublishIngest(ctx, job), context.Canceled)

	got, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, context.Canceled.Error(), got.Error)
}

type failingFinishStore struct {
	*Store
}

func (failingFinishStore) FinishJob(context.Context, string, jobs.JobStatus, string) error {
	return errors.New("store unavailable")
}

func TestQueue_LogsStoreFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	q := NewQueue(1, failingFinishStore{NewStore()})
	q.fail(ctx, "job-1", errors.New("boom"))

	assert.Contains(t, buf.String(), `"job_id":"job-1"`)
	assert.Contains(t, buf.String(), "Failed to mark job as failed")
	assert.Contains(t, buf.String(), "store unavailable")
}
