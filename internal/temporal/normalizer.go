// Package temporal turns free-form transaction timestamps into UTC instants
// and projects stored instants into display zones.
package temporal

import (
	"strings"
	"time"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// Normalizer parses raw timestamps plus optional zone names into UTC instants.
// It is stateless and safe for concurrent use.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize parses rawTimestamp, interpreting zone-less values in rawTimezone.
// preferDaylight picks the daylight-saving occurrence of a wall clock repeated
// by a backward transition.
//
// A fatal outcome carries only its own flag: a missing zone noted before the
// timestamp turned out empty or unparseable is not reported.
func (n *Normalizer) Normalize(rawTimestamp, rawTimezone string, preferDaylight bool) domain.ParseOutcome {
	ts := cleanInput(rawTimestamp)
	tz := cleanInput(rawTimezone)

	var issues domain.Issues
	if tz == "" {
		issues.Add(domain.IssueMissingTimezone)
	}

	if ts == "" {
		return domain.Failed(domain.IssueEmptyTimestamp)
	}

	// Explicit UTC marker: the zone column is not consulted, but a missing one
	// is still reported.
	if strings.HasSuffix(ts, "Z") {
		v, err := parseLenient(strings.TrimSuffix(ts, "Z"))
		if err != nil {
			return domain.Failed(domain.IssueInvalidDateFormat)
		}
		if v.aware {
			return domain.Parsed(v.instant, issues)
		}
		return domain.Parsed(v.wall.In(time.UTC), issues)
	}

	v, err := parseLenient(ts)
	if err != nil {
		return domain.Failed(domain.IssueInvalidDateFormat)
	}
	if v.aware {
		return domain.Parsed(v.instant, issues)
	}

	if tz != "" {
		if loc, ok := LookupZone(tz); ok {
			return domain.Parsed(Localize(v.wall, loc, preferDaylight), issues)
		}
		issues.Add(domain.IssueInvalidTimezone)
	}

	return domain.Parsed(v.wall.In(time.UTC), issues)
}

// cleanInput trims s and maps the null spellings spreadsheets and dataframes
// leave behind to the empty string.
func cleanInput(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "nat", "null", "none", "<nil>":
		return ""
	}
	return s
}
