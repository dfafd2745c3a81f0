package bigquery

import (
	"time"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// QualityRow represents the single row of analytics.data_quality_summary.
type QualityRow struct {
	TotalRecords          int64     `bigquery:"total_records" json:"total_records"`
	InvalidDates          int64     `bigquery:"invalid_dates" json:"invalid_dates"`
	MissingTimezones      int64     `bigquery:"missing_timezones" json:"missing_timezones"`
	DuplicateTransactions int64     `bigquery:"duplicate_transactions" json:"duplicate_transactions"`
	OutOfOrderRecords     int64     `bigquery:"out_of_order_records" json:"out_of_order_records"`
	UpdatedTS             time.Time `bigquery:"updated_ts" json:"-"`
}

// qualityLoadRow adds the JSON-encoded timestamp BigQuery expects on load.
type qualityLoadRow struct {
	QualityRow
	UpdatedTS string `json:"updated_ts"`
}

func newQualityLoadRow(stats domain.BatchQualityStats, now time.Time) qualityLoadRow {
	return qualityLoadRow{
		QualityRow: QualityRow{
			TotalRecords:          int64(stats.TotalSeen),
			InvalidDates:          int64(stats.InvalidDates),
			MissingTimezones:      int64(stats.MissingTimezones),
			DuplicateTransactions: int64(stats.Duplicates),
			OutOfOrderRecords:     int64(stats.OutOfOrder),
		},
		UpdatedTS: now.UTC().Format(bqTimestampLayout),
	}
}

func (q QualityRow) stats() domain.BatchQualityStats {
	return domain.BatchQualityStats{
		TotalSeen:        int(q.TotalRecords),
		InvalidDates:     int(q.InvalidDates),
		MissingTimezones: int(q.MissingTimezones),
		Duplicates:       int(q.DuplicateTransactions),
		OutOfOrder:       int(q.OutOfOrderRecords),
	}
}
