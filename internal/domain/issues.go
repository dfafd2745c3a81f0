package domain

import (
	"encoding/json"
	"time"
)

// IssueFlag names one way timestamp normalization failed or degraded.
type IssueFlag string

const (
	IssueEmptyTimestamp    IssueFlag = "empty_timestamp"
	IssueInvalidDateFormat IssueFlag = "invalid_date_format"
	IssueMissingTimezone   IssueFlag = "missing_timezone"
	IssueInvalidTimezone   IssueFlag = "invalid_timezone"
)

// Fatal reports whether the flag means no instant could be produced.
func (f IssueFlag) Fatal() bool {
	return f == IssueEmptyTimestamp || f == IssueInvalidDateFormat
}

// Issues is an insertion-ordered set of flags.
type Issues struct {
	flags []IssueFlag
}

// NewIssues returns a set holding flags, duplicates dropped.
func NewIssues(flags ...IssueFlag) Issues {
	var s Issues
	for _, f := range flags {
		s.Add(f)
	}
	return s
}

// Add inserts f unless it is already present.
func (s *Issues) Add(f IssueFlag) {
	if s.Has(f) {
		return
	}
	s.flags = append(s.flags, f)
}

func (s Issues) Has(f IssueFlag) bool {
	for _, existing := range s.flags {
		if existing == f {
			return true
		}
	}
	return false
}

func (s Issues) Len() int {
	return len(s.flags)
}

// Slice returns a copy of the flags in insertion order.
func (s Issues) Slice() []IssueFlag {
	out := make([]IssueFlag, len(s.flags))
	copy(out, s.flags)
	return out
}

func (s Issues) Clone() Issues {
	return Issues{flags: s.Slice()}
}

// MarshalJSON encodes the set in the stored data_quality_flags shape.
func (s Issues) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Issues []IssueFlag `json:"issues"`
	}{Issues: s.Slice()})
}

func (s *Issues) UnmarshalJSON(data []byte) error {
	var payload struct {
		Issues []IssueFlag `json:"issues"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*s = NewIssues(payload.Issues...)
	return nil
}

// ParseOutcome is the result of normalizing one raw timestamp: either an
// instant with zero or more non-fatal flags, or no instant and exactly one
// fatal flag.
type ParseOutcome struct {
	instant time.Time
	ok      bool
	issues  Issues
}

// Parsed builds a successful outcome.
func Parsed(instant time.Time, issues Issues) ParseOutcome {
	return ParseOutcome{instant: instant.UTC(), ok: true, issues: issues.Clone()}
}

// Failed builds a fatal outcome. Any previously noted flags are discarded.
func Failed(flag IssueFlag) ParseOutcome {
	return ParseOutcome{issues: NewIssues(flag)}
}

// Instant returns the UTC instant and whether one was produced.
func (o ParseOutcome) Instant() (time.Time, bool) {
	return o.instant, o.ok
}

func (o ParseOutcome) Fatal() bool {
	return !o.ok
}

func (o ParseOutcome) Issues() Issues {
	return o.issues
}
