package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/analytics"
	"github.com/dvloznov/commerce-analytics/internal/config"
	"github.com/dvloznov/commerce-analytics/internal/infra"
	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/pipeline"
	"github.com/dvloznov/commerce-analytics/internal/repository"
	"github.com/dvloznov/commerce-analytics/internal/source"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(log)
	case "daily":
		runDaily(log)
	case "hourly":
		runHourly(log)
	case "compare":
		runCompare(log)
	case "quality":
		runQuality(log)
	case "upload":
		runUpload(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Commerce Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest    Normalize a transactions CSV and replace the stored batch")
	fmt.Println("  daily     Daily sales for a date range")
	fmt.Println("  hourly    Hourly sales for one date")
	fmt.Println("  compare   Compare sales between two months")
	fmt.Println("  quality   Show the latest data quality report")
	fmt.Println("  upload    Upload a CSV file to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env is what every command needs: settings, a store and a context.
type env struct {
	cfg  config.Config
	repo repository.Repository
	ctx  context.Context
	log  zerolog.Logger
}

func setup(log zerolog.Logger, fs *flag.FlagSet) (*env, context.CancelFunc) {
	configPath := fs.String("config", "", "Path to YAML config file")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithConfig(cfg.Log.Level, cfg.Log.Pretty)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	ctx = logger.WithContext(ctx, log)

	repo, err := infra.OpenRepository(ctx, cfg.Storage, log)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to open repository")
	}

	return &env{cfg: cfg, repo: repo, ctx: ctx, log: log}, func() {
		repo.Close()
		cancel()
	}
}

func (e *env) ingest(uri string) *pipeline.RunResult {
	ingestor, err := pipeline.New(pipeline.Config{
		DuplicateWindow: e.cfg.Ingest.DuplicateWindow(),
		PreferDaylight:  e.cfg.Ingest.PreferDaylight,
	}, e.log)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to create ingestor")
	}

	res, err := ingestor.Run(e.ctx, source.NewCSVSource(uri), e.repo)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Ingestion failed")
	}
	return res
}

// ensureData ingests the configured source into an empty in-memory store so
// report commands have something to read.
func (e *env) ensureData() {
	if e.cfg.Storage.Backend != config.BackendMemory {
		return
	}
	if n, err := e.repo.CountTransactions(e.ctx); err == nil && n > 0 {
		return
	}
	e.log.Info().Str("source", e.cfg.Ingest.Source).Msg("In-memory store is empty; ingesting configured source")
	e.ingest(e.cfg.Ingest.Source)
}

func (e *env) engine() *analytics.Engine {
	return analytics.NewEngine(e.repo, e.cfg.Reports.MaxRangeDays)
}

func printJSON(log zerolog.Logger, v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func parseDate(log zerolog.Logger, name, value string) civil.Date {
	d, err := civil.ParseDate(value)
	if err != nil {
		log.Fatal().Err(err).Msgf("Error: -%s must be in YYYY-MM-DD format", name)
	}
	return d
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	uri := fs.String("source", "", "CSV to ingest: local path or gs://bucket/object (defaults to ingest.source)")
	e, done := setup(log, fs)
	defer done()

	if *uri == "" {
		*uri = e.cfg.Ingest.Source
	}

	e.log.Info().Str("source", *uri).Msg("Starting ingestion")
	printJSON(e.log, e.ingest(*uri))
}

func runDaily(log zerolog.Logger) {
	fs := flag.NewFlagSet("daily", flag.ExitOnError)
	start := fs.String("start", "", "Start date (YYYY-MM-DD)")
	end := fs.String("end", "", "End date (YYYY-MM-DD)")
	tz := fs.String("tz", "", "Display timezone (defaults to reports.default_timezone)")
	e, done := setup(log, fs)
	defer done()

	if *start == "" || *end == "" {
		e.log.Fatal().Msg("Usage: cli daily -start YYYY-MM-DD -end YYYY-MM-DD [-tz ZONE]")
	}
	if *tz == "" {
		*tz = e.cfg.Reports.DefaultTimezone
	}

	e.ensureData()
	report, err := e.engine().Daily(e.ctx, parseDate(e.log, "start", *start), parseDate(e.log, "end", *end), *tz)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Daily report failed")
	}
	printJSON(e.log, report)
}

func runHourly(log zerolog.Logger) {
	fs := flag.NewFlagSet("hourly", flag.ExitOnError)
	date := fs.String("date", "", "Date (YYYY-MM-DD)")
	tz := fs.String("tz", "", "Display timezone (defaults to reports.default_timezone)")
	e, done := setup(log, fs)
	defer done()

	if *date == "" {
		e.log.Fatal().Msg("Usage: cli hourly -date YYYY-MM-DD [-tz ZONE]")
	}
	if *tz == "" {
		*tz = e.cfg.Reports.DefaultTimezone
	}

	e.ensureData()
	report, err := e.engine().Hourly(e.ctx, parseDate(e.log, "date", *date), *tz)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Hourly report failed")
	}
	printJSON(e.log, report)
}

func runCompare(log zerolog.Logger) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	p1 := fs.String("p1", "", "First period (YYYY-MM)")
	p2 := fs.String("p2", "", "Second period (YYYY-MM)")
	e, done := setup(log, fs)
	defer done()

	if *p1 == "" || *p2 == "" {
		e.log.Fatal().Msg("Usage: cli compare -p1 YYYY-MM -p2 YYYY-MM")
	}

	e.ensureData()
	cmp, err := e.engine().Compare(e.ctx, *p1, *p2)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Comparison failed")
	}
	printJSON(e.log, cmp)
}

func runQuality(log zerolog.Logger) {
	fs := flag.NewFlagSet("quality", flag.ExitOnError)
	e, done := setup(log, fs)
	defer done()

	e.ensureData()
	summary, err := e.repo.LatestQualitySummary(e.ctx)
	if errors.Is(err, repository.ErrNoQualitySummary) {
		fmt.Println("No data quality summary found. Run 'cli ingest' first.")
		return
	}
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to read quality summary")
	}

	printJSON(e.log, map[string]any{
		"total_records":     summary.Stats.TotalSeen,
		"processed_records": summary.ProcessedRecords,
		"issues_found":      summary.Stats,
		"updated_at":        summary.UpdatedAt.Format(time.RFC3339),
	})
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local CSV file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := source.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}
