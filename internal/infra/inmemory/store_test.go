package inmemory

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commerce-analytics/internal/domain"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

func record(id string, status domain.Status, instant time.Time, amount int64) domain.CanonicalTransaction {
	raw := domain.RawTransaction{TransactionID: id, CustomerID: "CUST-1", Amount: decimal.NewFromInt(amount), Status: status}
	rec, err := domain.NewCanonicalTransaction(raw, domain.Parsed(instant, domain.NewIssues()), 0)
	if err != nil {
		panic(err)
	}
	return rec
}

func TestStore_QualitySummary(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.LatestQualitySummary(ctx)
	assert.ErrorIs(t, err, repository.ErrNoQualitySummary)

	stats := domain.BatchQualityStats{TotalSeen: 3, InvalidDates: 1, Duplicates: 1}
	recs := []domain.CanonicalTransaction{record("A", domain.StatusCompleted, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), 50)}
	require.NoError(t, s.ReplaceBatch(ctx, recs, stats))

	got, err := s.LatestQualitySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats, got.Stats)
	assert.Equal(t, 1, got.ProcessedRecords)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStore_ReplaceBatchDropsPreviousData(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceBatch(ctx, []domain.CanonicalTransaction{record("A", domain.StatusCompleted, jan, 1), record("B", domain.StatusCompleted, jan, 2)}, domain.BatchQualityStats{TotalSeen: 2}))
	require.NoError(t, s.ReplaceBatch(ctx, []domain.CanonicalTransaction{record("C", domain.StatusCompleted, jan, 3)}, domain.BatchQualityStats{TotalSeen: 1}))

	n, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.LatestQualitySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats.TotalSeen)
}

func TestStore_ClearInsertReplace(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertTransactions(ctx, []domain.CanonicalTransaction{record("A", domain.StatusCompleted, jan, 1)}))
	require.NoError(t, s.ClearTransactions(ctx))
	require.NoError(t, s.InsertTransactions(ctx, []domain.CanonicalTransaction{record("B", domain.StatusCompleted, jan, 2)}))
	require.NoError(t, s.ReplaceQualitySummary(ctx, domain.BatchQualityStats{TotalSeen: 1}))

	n, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_CompletedSales(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	recs := []domain.CanonicalTransaction{
		record("A", domain.StatusCompleted, time.Date(2024, 1, 14, 23, 59, 59, 0, time.UTC), 1),
		record("B", domain.StatusCompleted, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 2),
		record("C", domain.StatusPending, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), 3),
		record("D", domain.StatusFailed, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), 4),
		record("E", domain.StatusCompleted, time.Date(2024, 1, 16, 23, 59, 59, 0, time.UTC), 5),
		record("F", domain.StatusCompleted, time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), 6),
	}
	require.NoError(t, s.ReplaceBatch(ctx, recs, domain.BatchQualityStats{}))

	sales, err := s.CompletedSales(ctx, civil.Date{Year: 2024, Month: 1, Day: 15}, civil.Date{Year: 2024, Month: 1, Day: 16})
	require.NoError(t, err)

	require.Len(t, sales, 2)
	assert.True(t, sales[0].Amount.Equal(decimal.NewFromInt(2)))
	assert.True(t, sales[1].Amount.Equal(decimal.NewFromInt(5)))
}
