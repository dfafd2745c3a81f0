package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/commerce-analytics/internal/analytics"
	"github.com/dvloznov/commerce-analytics/internal/api"
	"github.com/dvloznov/commerce-analytics/internal/config"
	"github.com/dvloznov/commerce-analytics/internal/infra"
	"github.com/dvloznov/commerce-analytics/internal/jobs"
	"github.com/dvloznov/commerce-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/pipeline"
	"github.com/dvloznov/commerce-analytics/internal/repository"
	"github.com/dvloznov/commerce-analytics/internal/source"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to YAML config file (or set ANALYTICS_CONFIG)")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Initialize logger
	log := logger.NewWithConfig(cfg.Log.Level, cfg.Log.Pretty)

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infra.OpenRepository(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repository")
	}
	defer repo.Close()

	ingestor, err := pipeline.New(pipeline.Config{
		DuplicateWindow: cfg.Ingest.DuplicateWindow(),
		PreferDaylight:  cfg.Ingest.PreferDaylight,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ingestor")
	}

	// Initialize job infrastructure; the queue has a single worker so
	// ingestion runs never overlap.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Ingest.QueueSize, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := jobs.NewIngestHandler(ingestor, repo, func(uri string) pipeline.RowSource {
		return source.NewCSVSource(uri)
	})

	log.Info().Msg("Starting job worker")
	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	if cfg.Ingest.OnStartup {
		enqueueInitialIngest(ctx, cfg, repo, jobQueue)
	}

	router := api.NewRouter(api.Deps{
		Engine:          analytics.NewEngine(repo, cfg.Reports.MaxRangeDays),
		Quality:         repo,
		Store:           repo,
		Publisher:       jobQueue,
		JobStore:        jobStore,
		DefaultTimezone: cfg.Reports.DefaultTimezone,
		DefaultSource:   cfg.Ingest.Source,
		MaxRetries:      cfg.Ingest.MaxRetries,
		Log:             log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Str("backend", cfg.Storage.Backend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for the in-flight run
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// enqueueInitialIngest schedules an ingestion of the configured source when
// the store holds no transactions yet.
func enqueueInitialIngest(ctx context.Context, cfg config.Config, repo repository.Repository, publisher jobs.Publisher) {
	log := logger.FromContext(ctx)

	n, err := repo.CountTransactions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count stored transactions; skipping startup ingestion")
		return
	}
	if n > 0 {
		log.Info().Int("transactions", n).Msg("Store already populated; skipping startup ingestion")
		return
	}

	job := &jobs.IngestJob{SourceURI: cfg.Ingest.Source, MaxRetries: cfg.Ingest.MaxRetries}
	if err := publisher.PublishIngest(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue startup ingestion")
		return
	}
	log.Info().Str("job_id", job.JobID).Str("source_uri", job.SourceURI).Msg("No processed transactions found; startup ingestion enqueued")
}
