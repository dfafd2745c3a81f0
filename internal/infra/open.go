// Package infra selects and opens the configured repository backend.
package infra

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/config"
	infraBQ "github.com/dvloznov/commerce-analytics/internal/infra/bigquery"
	"github.com/dvloznov/commerce-analytics/internal/infra/inmemory"
	"github.com/dvloznov/commerce-analytics/internal/infra/postgres"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

// OpenRepository opens the backend named by cfg.Backend. Postgres schemas are
// migrated and BigQuery tables created before the store is returned.
func OpenRepository(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (repository.Repository, error) {
	log = log.With().Str("backend", cfg.Backend).Logger()

	switch cfg.Backend {
	case config.BackendMemory:
		log.Info().Msg("Using in-memory store")
		return inmemory.NewStore(), nil

	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		log.Info().Msg("Connected to PostgreSQL")
		return store, nil

	case config.BackendBigQuery:
		store, err := infraBQ.NewStore(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, log)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		log.Info().Str("project", cfg.BigQueryProject).Str("dataset", cfg.BigQueryDataset).Msg("Connected to BigQuery")
		return store, nil
	}

	return nil, fmt.Errorf("OpenRepository: unknown backend %q", cfg.Backend)
}
