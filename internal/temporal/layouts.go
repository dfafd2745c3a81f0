package temporal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
)

// ErrUnparseable is returned when no known layout matches a timestamp.
var ErrUnparseable = errors.New("unrecognised timestamp")

// Offset-bearing layouts. Values parsed with these are instants.
var awareLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 Z07:00",
	time.RFC1123Z,
	time.RFC822Z,
}

// Zone-less layouts, month-first before day-first so that 01/02/24 reads as
// January 2nd and 15/01/2024 still parses.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"20060102150405",
	"20060102",
	"1/2/06 3:04 PM",
	"1/2/06 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/06 15:04",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006",
	"2/1/2006 3:04 PM",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006",
	"2-Jan-2006 15:04",
	"2-Jan-2006 15:04:05",
	"2-Jan-2006 3:04 PM",
	"2-Jan-2006",
	"January 2, 2006, 3:04 PM",
	"January 2, 2006, 3:04:05 PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006, 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"2 January 2006 15:04",
	"2 Jan 2006 15:04",
}

var (
	explicitZoneSuffix = regexp.MustCompile(`(?i)([+-]\d{2}:?\d{2}|\b(utc|gmt))$`)
	digitsOnly         = regexp.MustCompile(`^\d+$`)
)

// parsedValue is either a wall clock without zone (aware == false) or an
// instant (aware == true).
type parsedValue struct {
	wall    civil.DateTime
	instant time.Time
	aware   bool
}

func naiveValue(t time.Time) parsedValue {
	return parsedValue{wall: civil.DateTimeOf(t)}
}

func awareValue(t time.Time) parsedValue {
	return parsedValue{instant: t.UTC(), aware: true}
}

// parseLenient reads s with the layout table and falls back to dateparse for
// free-form natural language dates.
func parseLenient(s string) (parsedValue, error) {
	if v, ok := parseWithLayouts(s); ok {
		return v, nil
	}
	// Go only accepts upper-case meridiem markers; month names are matched
	// case-insensitively, so upper-casing the whole input is safe.
	if upper := strings.ToUpper(s); upper != s {
		if v, ok := parseWithLayouts(upper); ok {
			return v, nil
		}
	}
	if digitsOnly.MatchString(s) {
		// dateparse would read bare integers as unix epochs.
		return parsedValue{}, fmt.Errorf("parse %q: %w", s, ErrUnparseable)
	}
	return parseFallback(s)
}

func parseWithLayouts(s string) (parsedValue, bool) {
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return awareValue(t), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return naiveValue(t), true
		}
	}
	return parsedValue{}, false
}

func parseFallback(s string) (v parsedValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = parsedValue{}, fmt.Errorf("parse %q: %v: %w", s, r, ErrUnparseable)
		}
	}()

	t, perr := dateparse.ParseIn(s, time.UTC)
	if perr != nil {
		return parsedValue{}, fmt.Errorf("parse %q: %v: %w", s, perr, ErrUnparseable)
	}
	if explicitZoneSuffix.MatchString(s) {
		return awareValue(t), nil
	}
	return naiveValue(t), nil
}
