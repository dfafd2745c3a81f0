package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/commerce-analytics/internal/domain"
	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/metrics"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID     string
	StartedAt time.Time
	Rows      []domain.RawTransaction
	Result    *BatchResult
}

// Step 1: LoadSourceStep reads the raw rows of the batch.
type LoadSourceStep struct {
	Source RowSource
}

func (s *LoadSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := s.Source.LoadTransactions(ctx)
	if err != nil {
		return fmt.Errorf("LoadSourceStep: %w", err)
	}
	state.Rows = rows
	return nil
}

// Step 2: NormalizeStep classifies every row.
type NormalizeStep struct {
	Ingestor *Ingestor
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Result = s.Ingestor.Process(state.Rows)

	log := logger.FromContext(ctx)
	for _, d := range state.Result.Decisions {
		metrics.IngestRowsTotal.WithLabelValues(string(d.Outcome)).Inc()
		if d.Outcome == OutcomeAccepted {
			continue
		}
		log.Debug().
			Int("sequence", d.Sequence).
			Str("transaction_id", d.TransactionID).
			Str("reason", string(d.Outcome)).
			Interface("issues", d.Issues.Slice()).
			Msg("Row dropped")
	}
	return nil
}

// Step 3: PersistStep replaces the stored batch and quality snapshot.
type PersistStep struct {
	Writer repository.TransactionWriter
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	recs, stats := state.Result.Accepted, state.Result.Stats

	if r, ok := s.Writer.(repository.BatchReplacer); ok {
		if err := r.ReplaceBatch(ctx, recs, stats); err != nil {
			return fmt.Errorf("PersistStep: replace batch: %w", err)
		}
		return nil
	}

	if err := s.Writer.ClearTransactions(ctx); err != nil {
		return fmt.Errorf("PersistStep: clear transactions: %w", err)
	}
	if err := s.Writer.InsertTransactions(ctx, recs); err != nil {
		return fmt.Errorf("PersistStep: insert transactions: %w", err)
	}
	if err := s.Writer.ReplaceQualitySummary(ctx, stats); err != nil {
		return fmt.Errorf("PersistStep: replace quality summary: %w", err)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewIngestionPipeline creates the standard 3-step ingestion pipeline.
func NewIngestionPipeline(src RowSource, ing *Ingestor, w repository.TransactionWriter) *Pipeline {
	return NewPipeline(
		&LoadSourceStep{Source: src},
		&NormalizeStep{Ingestor: ing},
		&PersistStep{Writer: w},
	)
}
