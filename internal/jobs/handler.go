package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/pipeline"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

// SourceOpener turns a job's source URI into a row source.
type SourceOpener func(uri string) pipeline.RowSource

// NewIngestHandler returns the handler that runs one ingestion per job and
// stores the run result on the job.
func NewIngestHandler(ing *pipeline.Ingestor, w repository.TransactionWriter, open SourceOpener) JobHandler {
	return func(ctx context.Context, job *IngestJob) error {
		log := logger.FromContext(ctx).With().
			Str("job_id", job.JobID).
			Str("source_uri", job.SourceURI).
			Logger()
		ctx = logger.WithContext(ctx, log)

		log.Info().Int("retry", job.RetryCount).Msg("Processing ingestion job")

		res, err := ing.Run(ctx, open(job.SourceURI), w)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", job.SourceURI, err)
		}
		job.Result = res
		return nil
	}
}
