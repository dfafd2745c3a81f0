package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// transactionRow mirrors the transactions table.
type transactionRow struct {
	TransactionID      string          `db:"transaction_id"`
	CustomerID         string          `db:"customer_id"`
	Amount             decimal.Decimal `db:"amount"`
	Currency           string          `db:"currency"`
	OriginalTimestamp  string          `db:"original_timestamp"`
	OriginalTimezone   string          `db:"original_timezone"`
	ProcessedTimestamp sql.NullTime    `db:"processed_timestamp"`
	NormalizedTimezone string          `db:"normalized_timezone"`
	Status             string          `db:"status"`
	ProductCategory    string          `db:"product_category"`
	DataQualityFlags   string          `db:"data_quality_flags"`
	BatchSequence      int             `db:"batch_sequence"`
}

var transactionColumns = []string{
	"transaction_id",
	"customer_id",
	"amount",
	"currency",
	"original_timestamp",
	"original_timezone",
	"processed_timestamp",
	"normalized_timezone",
	"status",
	"product_category",
	"data_quality_flags",
	"batch_sequence",
}

func toTransactionRow(rec domain.CanonicalTransaction) (transactionRow, error) {
	flags, err := json.Marshal(rec.Issues)
	if err != nil {
		return transactionRow{}, fmt.Errorf("toTransactionRow: marshal flags for %s: %w", rec.TransactionID, err)
	}
	return transactionRow{
		TransactionID:      rec.TransactionID,
		CustomerID:         rec.CustomerID,
		Amount:             rec.Amount,
		Currency:           rec.Currency,
		OriginalTimestamp:  rec.RawTimestamp,
		OriginalTimezone:   rec.RawTimezone,
		ProcessedTimestamp: sql.NullTime{Time: rec.UTCInstant.UTC(), Valid: !rec.UTCInstant.IsZero()},
		NormalizedTimezone: rec.NormalizedTimezone,
		Status:             string(rec.Status),
		ProductCategory:    rec.Category,
		DataQualityFlags:   string(flags),
		BatchSequence:      rec.BatchSequence,
	}, nil
}

func (r transactionRow) values() []any {
	return []any{
		r.TransactionID,
		r.CustomerID,
		r.Amount,
		r.Currency,
		r.OriginalTimestamp,
		r.OriginalTimezone,
		r.ProcessedTimestamp,
		r.NormalizedTimezone,
		r.Status,
		r.ProductCategory,
		r.DataQualityFlags,
		r.BatchSequence,
	}
}

// saleRow is one result row of the sales query.
type saleRow struct {
	ProcessedTimestamp time.Time       `db:"processed_timestamp"`
	Amount             decimal.Decimal `db:"amount"`
}

// qualityRow mirrors the single data_quality_summary row.
type qualityRow struct {
	TotalRecords          int       `db:"total_records"`
	InvalidDates          int       `db:"invalid_dates"`
	MissingTimezones      int       `db:"missing_timezones"`
	DuplicateTransactions int       `db:"duplicate_transactions"`
	OutOfOrderRecords     int       `db:"out_of_order_records"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func (q qualityRow) stats() domain.BatchQualityStats {
	return domain.BatchQualityStats{
		TotalSeen:        q.TotalRecords,
		InvalidDates:     q.InvalidDates,
		MissingTimezones: q.MissingTimezones,
		Duplicates:       q.DuplicateTransactions,
		OutOfOrder:       q.OutOfOrderRecords,
	}
}
