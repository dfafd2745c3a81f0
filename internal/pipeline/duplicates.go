package pipeline

import (
	"time"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// DefaultDuplicateWindow is the largest gap between two payments by the same
// customer for the same amount that still counts as a repeat.
const DefaultDuplicateWindow = 60 * time.Second

// DuplicateDetector flags near-simultaneous repeats within one batch. It only
// looks at records accepted earlier in the same run.
//
// Each check scans every accepted record, so a batch costs O(n^2) comparisons.
// That is fine for file-sized batches but will not scale to millions of rows.
type DuplicateDetector struct {
	window time.Duration
}

func NewDuplicateDetector(window time.Duration) *DuplicateDetector {
	return &DuplicateDetector{window: window}
}

// IsDuplicate reports whether candidate repeats one of accepted. A candidate
// without an instant is never a duplicate. The window bound is inclusive.
func (d *DuplicateDetector) IsDuplicate(candidate domain.RawTransaction, instant time.Time, hasInstant bool, accepted []domain.CanonicalTransaction) bool {
	if !hasInstant {
		return false
	}
	for i := range accepted {
		prev := &accepted[i]
		if prev.CustomerID != candidate.CustomerID {
			continue
		}
		if !prev.Amount.Equal(candidate.Amount) {
			continue
		}
		if prev.UTCInstant.IsZero() {
			continue
		}
		if absDuration(instant.Sub(prev.UTCInstant)) <= d.window {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
