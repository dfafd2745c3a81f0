// Package pipeline turns one batch of raw transaction rows into accepted
// canonical records and a quality snapshot, then hands both to a store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/domain"
	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/metrics"
	"github.com/dvloznov/commerce-analytics/internal/repository"
	"github.com/dvloznov/commerce-analytics/internal/temporal"
)

// Config is fixed for the lifetime of an Ingestor.
type Config struct {
	DuplicateWindow time.Duration
	// PreferDaylight resolves wall clocks repeated by a backward DST
	// transition to their daylight-saving occurrence.
	PreferDaylight bool
}

// RowSource supplies the raw rows of one batch.
type RowSource interface {
	LoadTransactions(ctx context.Context) ([]domain.RawTransaction, error)
}

// RowDecision records what happened to one input row.
type RowDecision struct {
	Sequence      int
	TransactionID string
	Outcome       OutcomeClass
	Issues        domain.Issues
}

// BatchResult is the output of Process.
type BatchResult struct {
	Accepted  []domain.CanonicalTransaction
	Stats     domain.BatchQualityStats
	Decisions []RowDecision
}

// RunResult summarises a completed Run.
type RunResult struct {
	RunID     string                   `json:"run_id"`
	Stats     domain.BatchQualityStats `json:"stats"`
	Accepted  int                      `json:"accepted"`
	StartedAt time.Time                `json:"started_at"`
	Duration  time.Duration            `json:"duration_ns"`
}

// Ingestor runs batches. Runs replace stored data wholesale, so callers must
// not start a run while another one is in progress.
type Ingestor struct {
	cfg        Config
	normalizer *temporal.Normalizer
	detector   *DuplicateDetector
	log        zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) (*Ingestor, error) {
	if cfg.DuplicateWindow <= 0 {
		return nil, errors.New("pipeline.New: duplicate window must be positive")
	}
	return &Ingestor{
		cfg:        cfg,
		normalizer: temporal.NewNormalizer(),
		detector:   NewDuplicateDetector(cfg.DuplicateWindow),
		log:        log,
	}, nil
}

// Process classifies every row in order. It performs no I/O.
func (ing *Ingestor) Process(rows []domain.RawTransaction) *BatchResult {
	tracker := NewQualityTracker()
	result := &BatchResult{
		Accepted:  make([]domain.CanonicalTransaction, 0, len(rows)),
		Decisions: make([]RowDecision, 0, len(rows)),
	}

	for seq, row := range rows {
		outcome := ing.normalizer.Normalize(row.RawTimestamp, row.RawTimezone, ing.cfg.PreferDaylight)
		decision := RowDecision{Sequence: seq, TransactionID: row.TransactionID, Issues: outcome.Issues()}

		instant, ok := outcome.Instant()
		switch {
		case !ok:
			decision.Outcome = OutcomeInvalidDate
		case ing.detector.IsDuplicate(row, instant, ok, result.Accepted):
			decision.Outcome = OutcomeDuplicate
		default:
			rec, err := domain.NewCanonicalTransaction(row, outcome, seq)
			if err != nil {
				// Unreachable: fatal outcomes were handled above.
				decision.Outcome = OutcomeInvalidDate
				break
			}
			result.Accepted = append(result.Accepted, rec)
			decision.Outcome = OutcomeAccepted
		}

		tracker.Record(decision.Outcome, decision.Issues)
		result.Decisions = append(result.Decisions, decision)
	}

	result.Stats = tracker.Snapshot()
	return result
}

// Run loads one batch from src, processes it and replaces the stored batch in w.
// Nothing is written when loading fails.
func (ing *Ingestor) Run(ctx context.Context, src RowSource, w repository.TransactionWriter) (*RunResult, error) {
	state := &PipelineState{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := ing.log.With().Str("run_id", state.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Msg("Ingestion run started")

	p := NewIngestionPipeline(src, ing, w)
	err := p.Execute(ctx, state)
	duration := time.Since(state.StartedAt)
	metrics.IngestRunDuration.Observe(duration.Seconds())

	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Dur("duration", duration).Msg("Ingestion run failed")
		return nil, fmt.Errorf("Run: %w", err)
	}
	metrics.IngestRunsTotal.WithLabelValues("completed").Inc()

	res := &RunResult{
		RunID:     state.RunID,
		Stats:     state.Result.Stats,
		Accepted:  len(state.Result.Accepted),
		StartedAt: state.StartedAt,
		Duration:  duration,
	}
	log.Info().
		Int("total", res.Stats.TotalSeen).
		Int("accepted", res.Accepted).
		Int("invalid_dates", res.Stats.InvalidDates).
		Int("duplicates", res.Stats.Duplicates).
		Int("missing_timezones", res.Stats.MissingTimezones).
		Dur("duration", duration).
		Msg("Ingestion run completed")
	return res, nil
}
