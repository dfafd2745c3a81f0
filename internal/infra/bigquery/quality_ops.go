package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/commerce-analytics/internal/domain"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

// ReplaceQualitySummaryWithClient overwrites the single quality row.
func ReplaceQualitySummaryWithClient(ctx context.Context, client *bigquery.Client, datasetID string, stats domain.BatchQualityStats) error {
	data, err := encodeNDJSON([]qualityLoadRow{newQualityLoadRow(stats, time.Now())})
	if err != nil {
		return fmt.Errorf("ReplaceQualitySummary: %w", err)
	}
	if err := loadNDJSONWithClient(ctx, client, datasetID, qualityTable, data, bigquery.WriteTruncate); err != nil {
		return fmt.Errorf("ReplaceQualitySummary: %w", err)
	}
	return nil
}

// LatestQualitySummaryWithClient reads the quality row and the number of
// stored records with an instant.
func LatestQualitySummaryWithClient(ctx context.Context, client *bigquery.Client, datasetID string) (*domain.QualitySummary, error) {
	q := client.Query(`
		SELECT total_records, invalid_dates, missing_timezones, duplicate_transactions, out_of_order_records, updated_ts
		FROM ` + tableRef(client.Project(), datasetID, qualityTable) + `
		ORDER BY updated_ts DESC
		LIMIT 1
	`)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("LatestQualitySummary: query read: %w", err)
	}

	var row QualityRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, repository.ErrNoQualitySummary
	}
	if err != nil {
		return nil, fmt.Errorf("LatestQualitySummary: iter next: %w", err)
	}

	processed, err := CountTransactionsWithClient(ctx, client, datasetID, true)
	if err != nil {
		return nil, fmt.Errorf("LatestQualitySummary: %w", err)
	}

	return &domain.QualitySummary{Stats: row.stats(), ProcessedRecords: processed, UpdatedAt: row.UpdatedTS.UTC()}, nil
}
