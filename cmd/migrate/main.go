package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/config"
	infraBQ "github.com/dvloznov/commerce-analytics/internal/infra/bigquery"
	"github.com/dvloznov/commerce-analytics/internal/infra/postgres"
	"github.com/dvloznov/commerce-analytics/internal/logger"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file (or set ANALYTICS_CONFIG)")
	backend    = flag.String("backend", "", "Storage backend to migrate: postgres or bigquery (defaults to storage.backend)")
	dsn        = flag.String("dsn", "", "PostgreSQL DSN (overrides storage.postgres_dsn)")
	projectID  = flag.String("project", "", "GCP project ID (overrides storage.bigquery_project)")
	datasetID  = flag.String("dataset", "", "BigQuery dataset ID (overrides storage.bigquery_dataset)")
)

func main() {
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	target, err := resolveTarget(cfg.Storage, *backend, *dsn, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid migration target")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := migrate(ctx, target, log); err != nil {
		log.Fatal().Err(err).Str("backend", target.Backend).Msg("Migration failed")
	}
	log.Info().Str("backend", target.Backend).Msg("Schema is up to date")
}

// resolveTarget merges command-line overrides into the configured storage
// settings and checks that the chosen backend has a schema to migrate.
func resolveTarget(base config.StorageConfig, backend, dsn, project, dataset string) (config.StorageConfig, error) {
	target := base
	if backend != "" {
		target.Backend = strings.ToLower(backend)
	}
	if dsn != "" {
		target.PostgresDSN = dsn
	}
	if project != "" {
		target.BigQueryProject = project
	}
	if dataset != "" {
		target.BigQueryDataset = dataset
	}

	switch target.Backend {
	case config.BackendPostgres:
		if target.PostgresDSN == "" {
			return target, fmt.Errorf("-dsn or DATABASE_DSN is required for the postgres backend")
		}
	case config.BackendBigQuery:
		if target.BigQueryProject == "" {
			return target, fmt.Errorf("-project or BIGQUERY_PROJECT is required for the bigquery backend")
		}
		if target.BigQueryDataset == "" {
			return target, fmt.Errorf("-dataset or BIGQUERY_DATASET is required for the bigquery backend")
		}
	case config.BackendMemory:
		return target, fmt.Errorf("the memory backend has no schema; pass -backend postgres or -backend bigquery")
	default:
		return target, fmt.Errorf("unknown backend %q", target.Backend)
	}
	return target, nil
}

func migrate(ctx context.Context, target config.StorageConfig, log zerolog.Logger) error {
	switch target.Backend {
	case config.BackendPostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", target.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer db.Close()
		log.Info().Msg("Connected to PostgreSQL")
		return postgres.Migrate(db, log)

	case config.BackendBigQuery:
		store, err := infraBQ.NewStore(ctx, target.BigQueryProject, target.BigQueryDataset, log)
		if err != nil {
			return err
		}
		defer store.Close()
		log.Info().Str("project", target.BigQueryProject).Str("dataset", target.BigQueryDataset).Msg("Connected to BigQuery")
		return store.EnsureSchema(ctx)
	}
	return fmt.Errorf("unknown backend %q", target.Backend)
}
