// Package postgres is the PostgreSQL-backed transaction store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commerce-analytics/internal/domain"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

const (
	transactionsTable = "transactions"
	qualityTable      = "data_quality_summary"

	// insertBatchSize keeps each INSERT under the 65535 bind parameter limit.
	insertBatchSize = 500
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements repository.Repository on PostgreSQL.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: connect: %w", err)
	}
	if err := Migrate(db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}
	return NewStore(db, log), nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sqlx.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// ClearTransactions implements repository.TransactionWriter.
func (s *Store) ClearTransactions(ctx context.Context) error {
	query, args, err := psql.Delete(transactionsTable).ToSql()
	if err != nil {
		return fmt.Errorf("ClearTransactions: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ClearTransactions: %w", err)
	}
	return nil
}

// InsertTransactions implements repository.TransactionWriter.
func (s *Store) InsertTransactions(ctx context.Context, recs []domain.CanonicalTransaction) error {
	if err := insertTransactions(ctx, s.db, recs); err != nil {
		return fmt.Errorf("InsertTransactions: %w", err)
	}
	return nil
}

// ReplaceQualitySummary implements repository.TransactionWriter.
func (s *Store) ReplaceQualitySummary(ctx context.Context, stats domain.BatchQualityStats) error {
	if err := upsertQuality(ctx, s.db, stats); err != nil {
		return fmt.Errorf("ReplaceQualitySummary: %w", err)
	}
	return nil
}

// ReplaceBatch implements repository.BatchReplacer in one database transaction.
func (s *Store) ReplaceBatch(ctx context.Context, recs []domain.CanonicalTransaction, stats domain.BatchQualityStats) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ReplaceBatch: begin: %w", err)
	}
	defer tx.Rollback()

	query, args, err := psql.Delete(transactionsTable).ToSql()
	if err != nil {
		return fmt.Errorf("ReplaceBatch: build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ReplaceBatch: delete: %w", err)
	}
	if err := insertTransactions(ctx, tx, recs); err != nil {
		return fmt.Errorf("ReplaceBatch: %w", err)
	}
	if err := upsertQuality(ctx, tx, stats); err != nil {
		return fmt.Errorf("ReplaceBatch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ReplaceBatch: commit: %w", err)
	}

	s.log.Debug().Int("records", len(recs)).Msg("Batch replaced")
	return nil
}

// LatestQualitySummary implements repository.QualityReader.
func (s *Store) LatestQualitySummary(ctx context.Context) (*domain.QualitySummary, error) {
	query, args, err := psql.
		Select("total_records", "invalid_dates", "missing_timezones", "duplicate_transactions", "out_of_order_records", "updated_at").
		From(qualityTable).
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("LatestQualitySummary: build query: %w", err)
	}

	var row qualityRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoQualitySummary
		}
		return nil, fmt.Errorf("LatestQualitySummary: %w", err)
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(transactionsTable).Where("processed_timestamp IS NOT NULL").ToSql()
	if err != nil {
		return nil, fmt.Errorf("LatestQualitySummary: build count: %w", err)
	}
	var processed int
	if err := s.db.GetContext(ctx, &processed, countQuery, countArgs...); err != nil {
		return nil, fmt.Errorf("LatestQualitySummary: count processed: %w", err)
	}

	return &domain.QualitySummary{Stats: row.stats(), ProcessedRecords: processed, UpdatedAt: row.UpdatedAt.UTC()}, nil
}

// CompletedSales implements repository.SalesReader.
func (s *Store) CompletedSales(ctx context.Context, from, to civil.Date) ([]domain.Sale, error) {
	query, args, err := salesQuery(from, to).ToSql()
	if err != nil {
		return nil, fmt.Errorf("CompletedSales: build query: %w", err)
	}

	var rows []saleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("CompletedSales: %w", err)
	}

	sales := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		sales = append(sales, domain.Sale{Instant: r.ProcessedTimestamp.UTC(), Amount: r.Amount})
	}
	return sales, nil
}

// CountTransactions implements repository.Repository.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(transactionsTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: build query: %w", err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return n, nil
}

// Ping implements repository.Repository.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements repository.Repository.
func (s *Store) Close() error {
	return s.db.Close()
}

func salesQuery(from, to civil.Date) sq.SelectBuilder {
	return psql.
		Select("processed_timestamp", "amount").
		From(transactionsTable).
		Where(sq.Eq{"status": string(domain.StatusCompleted)}).
		Where("processed_timestamp IS NOT NULL").
		Where("(processed_timestamp AT TIME ZONE 'UTC')::date BETWEEN ? AND ?", from.String(), to.String()).
		OrderBy("processed_timestamp")
}

// insertBatches builds one INSERT per insertBatchSize records.
func insertBatches(recs []domain.CanonicalTransaction) ([]sq.InsertBuilder, error) {
	var batches []sq.InsertBuilder
	for start := 0; start < len(recs); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(recs) {
			end = len(recs)
		}
		ib := psql.Insert(transactionsTable).Columns(transactionColumns...)
		for _, rec := range recs[start:end] {
			row, err := toTransactionRow(rec)
			if err != nil {
				return nil, err
			}
			ib = ib.Values(row.values()...)
		}
		batches = append(batches, ib)
	}
	return batches, nil
}

func insertTransactions(ctx context.Context, exec sqlx.ExecerContext, recs []domain.CanonicalTransaction) error {
	batches, err := insertBatches(recs)
	if err != nil {
		return err
	}
	for i, ib := range batches {
		query, args, err := ib.ToSql()
		if err != nil {
			return fmt.Errorf("insertTransactions: build batch %d: %w", i, err)
		}
		if _, err := exec.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insertTransactions: batch %d: %w", i, err)
		}
	}
	return nil
}

func qualityUpsert(stats domain.BatchQualityStats) sq.InsertBuilder {
	return psql.Insert(qualityTable).
		Columns("id", "total_records", "invalid_dates", "missing_timezones", "duplicate_transactions", "out_of_order_records", "updated_at").
		Values(1, stats.TotalSeen, stats.InvalidDates, stats.MissingTimezones, stats.Duplicates, stats.OutOfOrder, sq.Expr("now()")).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			total_records = EXCLUDED.total_records,
			invalid_dates = EXCLUDED.invalid_dates,
			missing_timezones = EXCLUDED.missing_timezones,
			duplicate_transactions = EXCLUDED.duplicate_transactions,
			out_of_order_records = EXCLUDED.out_of_order_records,
			updated_at = EXCLUDED.updated_at`)
}

func upsertQuality(ctx context.Context, exec sqlx.ExecerContext, stats domain.BatchQualityStats) error {
	query, args, err := qualityUpsert(stats).ToSql()
	if err != nil {
		return fmt.Errorf("upsertQuality: build query: %w", err)
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsertQuality: %w", err)
	}
	return nil
}

var (
	_ repository.Repository    = (*Store)(nil)
	_ repository.BatchReplacer = (*Store)(nil)
)
