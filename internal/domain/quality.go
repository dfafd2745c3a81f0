package domain

import "time"

// BatchQualityStats counts what happened to the rows of one ingestion run.
type BatchQualityStats struct {
	TotalSeen        int `json:"total_seen"`
	InvalidDates     int `json:"invalid_date_count"`
	MissingTimezones int `json:"missing_timezone_count"`
	Duplicates       int `json:"duplicate_count"`
	// OutOfOrder is never computed; it is kept so the report shape stays stable.
	OutOfOrder int `json:"out_of_order_count"`
}

// QualitySummary is the latest stored snapshot together with the number of
// stored records that carry an instant.
type QualitySummary struct {
	Stats            BatchQualityStats
	ProcessedRecords int
	UpdatedAt        time.Time
}
