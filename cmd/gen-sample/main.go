package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/source"
)

var (
	count   = flag.Int("n", 5000, "Number of random transactions to generate")
	seed    = flag.Int64("seed", 1, "Random seed; the same seed always produces the same file")
	outPath = flag.String("out", "data/transactions.csv", "Output CSV path")
)

// Layouts rows are written in, mirroring the mix seen in real exports.
var sampleLayouts = []string{
	"2006-01-02 15:04:05",
	"01/02/06 03:04 PM",
	"02-Jan-2006 15:04",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

var (
	sampleZones = []string{
		"America/New_York", "Europe/London", "Asia/Tokyo", "UTC",
		"", "America/Los_Angeles", "Europe/Paris", "Australia/Sydney",
	}
	sampleCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD"}
	sampleCategories = []string{"electronics", "clothing", "home", "books", "sports", "beauty", "toys"}
	sampleStatuses   = []string{"completed", "pending", "failed"}
)

const duplicateRate = 0.02

var sampleStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// problemRows exercise the parser edge cases: an impossible date, both DST
// transitions, a missing zone, a day-first date and an abbreviated month.
var problemRows = [][]string{
	{"TXN-BAD01", "CUST-1111", "99.99", "USD", "2024-13-45 25:99:99", "UTC", "completed", "electronics"},
	{"TXN-DST01", "CUST-2222", "150.00", "USD", "2024-03-10 02:30:00", "America/New_York", "completed", "clothing"},
	{"TXN-DST02", "CUST-3333", "200.00", "USD", "2024-11-03 01:30:00", "America/New_York", "completed", "home"},
	{"TXN-NOTZ01", "CUST-4444", "75.50", "EUR", "2024-01-15 12:00:00", "", "completed", "books"},
	{"TXN-FMT01", "CUST-5555", "123.45", "GBP", "15/01/2024 3:45 PM", "Europe/London", "completed", "sports"},
	{"TXN-FMT02", "CUST-6666", "67.89", "EUR", "15-Jan-2024 15:45", "Europe/Paris", "completed", "beauty"},
}

func main() {
	flag.Parse()

	log := logger.New()

	if *count < 0 {
		log.Fatal().Int("n", *count).Msg("-n must not be negative")
	}

	if dir := filepath.Dir(*outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create output directory")
		}
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *outPath).Msg("Failed to create output file")
	}
	defer f.Close()

	rows := generate(*count, rand.New(rand.NewSource(*seed)))
	if err := writeCSV(f, rows); err != nil {
		log.Fatal().Err(err).Str("path", *outPath).Msg("Failed to write sample data")
	}

	log.Info().
		Int("rows", len(rows)).
		Int64("seed", *seed).
		Str("path", *outPath).
		Msg("Sample transactions generated")
}

// generate returns n random rows followed by the fixed problem rows. Roughly
// two percent of random rows repeat the previous row's customer and amount a
// few seconds later so the duplicate detector has something to find.
func generate(n int, rng *rand.Rand) [][]string {
	rows := make([][]string, 0, n+len(problemRows))

	var prevWall time.Time
	for i := 0; i < n; i++ {
		wall := sampleStart.Add(
			time.Duration(rng.Intn(90))*24*time.Hour +
				time.Duration(rng.Intn(24))*time.Hour +
				time.Duration(rng.Intn(60))*time.Minute +
				time.Duration(rng.Intn(60))*time.Second,
		)
		timestamp := wall.Format(sampleLayouts[rng.Intn(len(sampleLayouts))])

		row := []string{
			fmt.Sprintf("TXN-%05d", i+1),
			fmt.Sprintf("CUST-%d", 1000+rng.Intn(9000)),
			randomAmount(rng).StringFixed(2),
			pick(rng, sampleCurrencies),
			timestamp,
			pick(rng, sampleZones),
			pick(rng, sampleStatuses),
			pick(rng, sampleCategories),
		}

		if i > 0 && rng.Float64() < duplicateRate {
			prev := rows[len(rows)-1]
			wall = prevWall.Add(time.Duration(1+rng.Intn(5)) * time.Second)
			row[1] = prev[1]
			row[2] = prev[2]
			row[4] = wall.Format(sampleLayouts[0])
			row[5] = prev[5]
		}

		prevWall = wall
		rows = append(rows, row)
	}

	return append(rows, problemRows...)
}

// randomAmount is uniform over [5.99, 999.99] in cents.
func randomAmount(rng *rand.Rand) decimal.Decimal {
	cents := 599 + rng.Int63n(99999-599+1)
	return decimal.New(cents, -2)
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(source.Header); err != nil {
		return fmt.Errorf("writeCSV: header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writeCSV: rows: %w", err)
	}
	return nil
}
