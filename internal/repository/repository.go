// Package repository defines the storage contract used by ingestion and
// reporting. Implementations live under internal/infra.
package repository

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// ErrNoQualitySummary is returned when no ingestion run has stored a snapshot yet.
var ErrNoQualitySummary = errors.New("no quality summary stored")

// TransactionWriter receives the output of an ingestion run.
type TransactionWriter interface {
	ClearTransactions(ctx context.Context) error
	InsertTransactions(ctx context.Context, recs []domain.CanonicalTransaction) error
	ReplaceQualitySummary(ctx context.Context, stats domain.BatchQualityStats) error
}

// BatchReplacer is implemented by stores that can swap the stored batch and
// quality snapshot in one atomic step. Ingestion prefers it when available.
type BatchReplacer interface {
	ReplaceBatch(ctx context.Context, recs []domain.CanonicalTransaction, stats domain.BatchQualityStats) error
}

type QualityReader interface {
	// LatestQualitySummary returns ErrNoQualitySummary when nothing was stored.
	LatestQualitySummary(ctx context.Context) (*domain.QualitySummary, error)
}

// SalesReader selects completed sales whose UTC calendar date lies in [from, to].
type SalesReader interface {
	CompletedSales(ctx context.Context, from, to civil.Date) ([]domain.Sale, error)
}

// Repository is the full store used by the service binaries.
type Repository interface {
	TransactionWriter
	QualityReader
	SalesReader
	// CountTransactions returns the number of stored records.
	CountTransactions(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
