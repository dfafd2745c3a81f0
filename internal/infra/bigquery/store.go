// Package bigquery is the BigQuery-backed transaction store.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/domain"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

// Store implements repository.Repository on BigQuery. It holds a shared
// BigQuery client to avoid creating a new connection for each operation.
type Store struct {
	client    *bigquery.Client
	datasetID string
	log       zerolog.Logger
}

// NewStore creates a client for projectID and uses datasetID for all tables.
func NewStore(ctx context.Context, projectID, datasetID string, log zerolog.Logger) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{client: client, datasetID: datasetID, log: log}, nil
}

// EnsureSchema creates the dataset and tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return EnsureSchemaWithClient(ctx, s.client, s.datasetID, s.log)
}

// ClearTransactions implements repository.TransactionWriter.
func (s *Store) ClearTransactions(ctx context.Context) error {
	return TruncateTransactionsWithClient(ctx, s.client, s.datasetID)
}

// InsertTransactions implements repository.TransactionWriter.
func (s *Store) InsertTransactions(ctx context.Context, recs []domain.CanonicalTransaction) error {
	return LoadTransactionsWithClient(ctx, s.client, s.datasetID, recs, bigquery.WriteAppend)
}

// ReplaceQualitySummary implements repository.TransactionWriter.
func (s *Store) ReplaceQualitySummary(ctx context.Context, stats domain.BatchQualityStats) error {
	return ReplaceQualitySummaryWithClient(ctx, s.client, s.datasetID, stats)
}

// ReplaceBatch implements repository.BatchReplacer. Each table is swapped
// atomically by a truncating load job; the two swaps are not one transaction.
func (s *Store) ReplaceBatch(ctx context.Context, recs []domain.CanonicalTransaction, stats domain.BatchQualityStats) error {
	if err := LoadTransactionsWithClient(ctx, s.client, s.datasetID, recs, bigquery.WriteTruncate); err != nil {
		return fmt.Errorf("ReplaceBatch: %w", err)
	}
	if err := ReplaceQualitySummaryWithClient(ctx, s.client, s.datasetID, stats); err != nil {
		return fmt.Errorf("ReplaceBatch: %w", err)
	}
	s.log.Debug().Int("records", len(recs)).Str("dataset", s.datasetID).Msg("Batch replaced")
	return nil
}

// LatestQualitySummary implements repository.QualityReader.
func (s *Store) LatestQualitySummary(ctx context.Context) (*domain.QualitySummary, error) {
	return LatestQualitySummaryWithClient(ctx, s.client, s.datasetID)
}

// CompletedSales implements repository.SalesReader.
func (s *Store) CompletedSales(ctx context.Context, from, to civil.Date) ([]domain.Sale, error) {
	return QueryCompletedSalesWithClient(ctx, s.client, s.datasetID, from, to)
}

// CountTransactions implements repository.Repository.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	return CountTransactionsWithClient(ctx, s.client, s.datasetID, false)
}

// Ping checks that the dataset is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.Dataset(s.datasetID).Metadata(ctx); err != nil {
		return fmt.Errorf("Ping: dataset metadata: %w", err)
	}
	return nil
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var (
	_ repository.Repository    = (*Store)(nil)
	_ repository.BatchReplacer = (*Store)(nil)
)
