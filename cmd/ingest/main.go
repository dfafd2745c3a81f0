package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/dvloznov/commerce-analytics/internal/config"
	"github.com/dvloznov/commerce-analytics/internal/infra"
	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/pipeline"
	"github.com/dvloznov/commerce-analytics/internal/source"
)

func main() {
	// Parse CLI flags
	configPath := flag.String("config", "", "Path to YAML config file (or set ANALYTICS_CONFIG)")
	sourceURI := flag.String("source", "", "CSV to ingest: local path or gs://bucket/object (defaults to ingest.source)")
	preferDaylight := flag.Bool("prefer-daylight", false, "Read ambiguous fall-back wall clocks as daylight time (overrides config when set)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logger
	log := logger.NewWithConfig(cfg.Log.Level, cfg.Log.Pretty)

	if *sourceURI == "" {
		*sourceURI = cfg.Ingest.Source
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "prefer-daylight" {
			cfg.Ingest.PreferDaylight = *preferDaylight
		}
	})

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	if cfg.Storage.Backend == config.BackendMemory {
		log.Warn().Msg("Memory backend selected: the ingested batch is discarded when this command exits")
	}

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

	log.Info().Str("source", *sourceURI).Msg("Starting ingestion")

	res, err := ingestor.Run(ctx, source.NewCSVSource(*sourceURI), repo)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatal().Err(err).Msg("Failed to write result")
	}
}
