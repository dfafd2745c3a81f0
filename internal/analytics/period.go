package analytics

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"cloud.google.com/go/civil"
)

var (
	// ErrInvalidPeriod is returned for period tokens that are not YYYY-MM.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInvalidRange is returned for date ranges that end before they start
	// or span more days than the engine allows.
	ErrInvalidRange = errors.New("invalid date range")
)

var periodToken = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Period is one calendar month.
type Period struct {
	Token string     `json:"-"`
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// ParsePeriod reads a YYYY-MM token.
func ParsePeriod(token string) (Period, error) {
	if !periodToken.MatchString(token) {
		return Period{}, fmt.Errorf("ParsePeriod: %q: %w", token, ErrInvalidPeriod)
	}
	t, err := time.Parse("2006-01", token)
	if err != nil {
		return Period{}, fmt.Errorf("ParsePeriod: %q: %w", token, ErrInvalidPeriod)
	}
	start := civil.Date{Year: t.Year(), Month: t.Month(), Day: 1}
	return Period{Token: token, Start: start, End: lastDayOfMonth(start)}, nil
}

// lastDayOfMonth steps from the 28th into the next month, snaps to its first
// day and steps back one day.
func lastDayOfMonth(d civil.Date) civil.Date {
	next := civil.Date{Year: d.Year, Month: d.Month, Day: 28}.AddDays(4)
	return civil.Date{Year: next.Year, Month: next.Month, Day: 1}.AddDays(-1)
}
