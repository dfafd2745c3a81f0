package pipeline

import "github.com/dvloznov/commerce-analytics/internal/domain"

// OutcomeClass is what happened to one raw row.
type OutcomeClass string

const (
	OutcomeAccepted    OutcomeClass = "accepted"
	OutcomeInvalidDate OutcomeClass = "invalid_date"
	OutcomeDuplicate   OutcomeClass = "duplicate"
)

// QualityTracker accumulates the counters of one batch. Not safe for
// concurrent use; a batch is processed by a single goroutine.
type QualityTracker struct {
	stats domain.BatchQualityStats
}

func NewQualityTracker() *QualityTracker {
	return &QualityTracker{}
}

// Record counts one row. Missing zones are counted whatever the outcome, so a
// fatal row (whose flags hold only the fatal flag) never contributes one.
func (t *QualityTracker) Record(class OutcomeClass, issues domain.Issues) {
	t.stats.TotalSeen++
	if issues.Has(domain.IssueMissingTimezone) {
		t.stats.MissingTimezones++
	}
	switch class {
	case OutcomeInvalidDate:
		t.stats.InvalidDates++
	case OutcomeDuplicate:
		t.stats.Duplicates++
	}
}

func (t *QualityTracker) Snapshot() domain.BatchQualityStats {
	return t.stats
}
