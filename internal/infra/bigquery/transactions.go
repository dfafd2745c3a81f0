package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// TransactionRow represents a row in analytics.transactions. It is the
// schema source for EnsureSchema and the read shape for queries.
type TransactionRow struct {
	TransactionID      string                 `bigquery:"transaction_id"`
	CustomerID         string                 `bigquery:"customer_id"`
	Amount             *big.Rat               `bigquery:"amount"`
	Currency           string                 `bigquery:"currency"`
	OriginalTimestamp  string                 `bigquery:"original_timestamp"`
	OriginalTimezone   string                 `bigquery:"original_timezone"`
	ProcessedTimestamp bigquery.NullTimestamp `bigquery:"processed_timestamp"`
	NormalizedTimezone string                 `bigquery:"normalized_timezone"`
	Status             string                 `bigquery:"status"`
	ProductCategory    string                 `bigquery:"product_category"`
	DataQualityFlags   string                 `bigquery:"data_quality_flags"`
	BatchSequence      int64                  `bigquery:"batch_sequence"`
	CreatedTS          time.Time              `bigquery:"created_ts"`
}

// transactionLoadRow is the newline-delimited JSON shape of TransactionRow
// used by load jobs.
type transactionLoadRow struct {
	TransactionID      string  `json:"transaction_id"`
	CustomerID         string  `json:"customer_id"`
	Amount             string  `json:"amount"`
	Currency           string  `json:"currency"`
	OriginalTimestamp  string  `json:"original_timestamp"`
	OriginalTimezone   string  `json:"original_timezone"`
	ProcessedTimestamp *string `json:"processed_timestamp"`
	NormalizedTimezone string  `json:"normalized_timezone"`
	Status             string  `json:"status"`
	ProductCategory    string  `json:"product_category"`
	DataQualityFlags   string  `json:"data_quality_flags"`
	BatchSequence      int     `json:"batch_sequence"`
	CreatedTS          string  `json:"created_ts"`
}

// bqTimestampLayout is accepted by BigQuery for TIMESTAMP columns in JSON loads.
const bqTimestampLayout = "2006-01-02 15:04:05.999999 UTC"

func toLoadRow(rec domain.CanonicalTransaction, now time.Time) (transactionLoadRow, error) {
	flags, err := json.Marshal(rec.Issues)
	if err != nil {
		return transactionLoadRow{}, fmt.Errorf("toLoadRow: marshal flags for %s: %w", rec.TransactionID, err)
	}
	row := transactionLoadRow{
		TransactionID:      rec.TransactionID,
		CustomerID:         rec.CustomerID,
		Amount:             rec.Amount.String(),
		Currency:           rec.Currency,
		OriginalTimestamp:  rec.RawTimestamp,
		OriginalTimezone:   rec.RawTimezone,
		NormalizedTimezone: rec.NormalizedTimezone,
		Status:             string(rec.Status),
		ProductCategory:    rec.Category,
		DataQualityFlags:   string(flags),
		BatchSequence:      rec.BatchSequence,
		CreatedTS:          now.UTC().Format(bqTimestampLayout),
	}
	if !rec.UTCInstant.IsZero() {
		ts := rec.UTCInstant.UTC().Format(bqTimestampLayout)
		row.ProcessedTimestamp = &ts
	}
	return row, nil
}

// saleRow is one result row of the sales query.
type saleRow struct {
	ProcessedTimestamp time.Time `bigquery:"processed_timestamp"`
	Amount             *big.Rat  `bigquery:"amount"`
}

func (r saleRow) toSale() (domain.Sale, error) {
	if r.Amount == nil {
		return domain.Sale{}, fmt.Errorf("toSale: NULL amount at %s", r.ProcessedTimestamp)
	}
	amount, err := decimal.NewFromString(r.Amount.FloatString(bigquery.NumericScaleDigits))
	if err != nil {
		return domain.Sale{}, fmt.Errorf("toSale: amount %s: %w", r.Amount.RatString(), err)
	}
	return domain.Sale{Instant: r.ProcessedTimestamp.UTC(), Amount: amount}, nil
}
