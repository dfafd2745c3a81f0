package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

func mustInstant(t *testing.T, o domain.ParseOutcome) time.Time {
	t.Helper()
	instant, ok := o.Instant()
	require.True(t, ok, "expected an instant, got flags %v", o.Issues().Slice())
	return instant
}

func utcTime(y int, m time.Month, d, h, mi, s int) time.Time {
	return time.Date(y, m, d, h, mi, s, 0, time.UTC)
}

func TestNormalize_MixedFormats(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"standard", "2024-01-15 14:30:00", utcTime(2024, 1, 15, 14, 30, 0)},
		{"us short year", "01/15/24 2:30 PM", utcTime(2024, 1, 15, 14, 30, 0)},
		{"us single digits", "1/5/24 9:05 AM", utcTime(2024, 1, 5, 9, 5, 0)},
		{"day month abbrev", "15-Jan-2024 14:30", utcTime(2024, 1, 15, 14, 30, 0)},
		{"iso with z", "2024-01-15T14:30:00Z", utcTime(2024, 1, 15, 14, 30, 0)},
		{"iso naive", "2024-01-15T14:30:00", utcTime(2024, 1, 15, 14, 30, 0)},
		{"iso fractional z", "2024-01-15T14:30:00.250Z", time.Date(2024, 1, 15, 14, 30, 0, 250_000_000, time.UTC)},
		{"natural language", "November 3, 2024, 1:30 AM", utcTime(2024, 11, 3, 1, 30, 0)},
		{"natural abbreviated", "Nov 3, 2024 1:30 PM", utcTime(2024, 11, 3, 13, 30, 0)},
		{"lower case meridiem", "01/15/24 2:30 pm", utcTime(2024, 1, 15, 14, 30, 0)},
		{"day first when month is impossible", "15/01/2024 3:45 PM", utcTime(2024, 1, 15, 15, 45, 0)},
		{"explicit offset", "2024-01-15T14:30:00+02:00", utcTime(2024, 1, 15, 12, 30, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustInstant(t, n.Normalize(tt.raw, "UTC", false))
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestNormalize_MissingTimezoneReadsAsUTC(t *testing.T) {
	n := NewNormalizer()

	for _, tz := range []string{"", "   ", "nan", "None"} {
		o := n.Normalize("2024-11-03 01:30:00", tz, false)
		got := mustInstant(t, o)
		assert.True(t, utcTime(2024, 11, 3, 1, 30, 0).Equal(got))
		assert.Equal(t, []domain.IssueFlag{domain.IssueMissingTimezone}, o.Issues().Slice())
	}
}

func TestNormalize_ZuluKeepsMissingTimezoneFlag(t *testing.T) {
	o := NewNormalizer().Normalize("2024-01-15T10:00:00Z", "", false)

	assert.True(t, utcTime(2024, 1, 15, 10, 0, 0).Equal(mustInstant(t, o)))
	assert.True(t, o.Issues().Has(domain.IssueMissingTimezone))
}

func TestNormalize_ZuluIgnoresZoneColumn(t *testing.T) {
	o := NewNormalizer().Normalize("2024-01-15T10:00:00Z", "Asia/Tokyo", false)

	assert.True(t, utcTime(2024, 1, 15, 10, 0, 0).Equal(mustInstant(t, o)))
	assert.Equal(t, 0, o.Issues().Len())
}

func TestNormalize_FatalOutcomesCarryOnlyTheirFlag(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name string
		ts   string
		tz   string
		want domain.IssueFlag
	}{
		{"empty with zone", "", "UTC", domain.IssueEmptyTimestamp},
		{"empty without zone", "", "", domain.IssueEmptyTimestamp},
		{"null spelling", "NaN", "", domain.IssueEmptyTimestamp},
		{"impossible month", "2024-13-99", "", domain.IssueInvalidDateFormat},
		{"impossible clock", "2024-13-45 25:99:99", "UTC", domain.IssueInvalidDateFormat},
		{"garbage", "not a timestamp", "", domain.IssueInvalidDateFormat},
		{"bare integer", "1705312800", "", domain.IssueInvalidDateFormat},
		{"garbage zulu", "garbageZ", "", domain.IssueInvalidDateFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := n.Normalize(tt.ts, tt.tz, false)
			_, ok := o.Instant()
			assert.False(t, ok)
			assert.Equal(t, []domain.IssueFlag{tt.want}, o.Issues().Slice())
		})
	}
}

func TestNormalize_SpringForwardGap(t *testing.T) {
	n := NewNormalizer()
	ny, ok := LookupZone("America/New_York")
	require.True(t, ok)

	for _, prefer := range []bool{false, true} {
		got := mustInstant(t, n.Normalize("2024-03-10 02:30:00", "America/New_York", prefer))
		assert.True(t, utcTime(2024, 3, 10, 7, 30, 0).Equal(got), "prefer=%v got %s", prefer, got)
		assert.Equal(t, 3, got.In(ny).Hour())
		assert.Equal(t, 30, got.In(ny).Minute())
	}
}

func TestNormalize_FallBackOverlap(t *testing.T) {
	n := NewNormalizer()

	standard := mustInstant(t, n.Normalize("2024-11-03 01:30:00", "America/New_York", false))
	daylight := mustInstant(t, n.Normalize("2024-11-03 01:30:00", "America/New_York", true))

	assert.True(t, utcTime(2024, 11, 3, 6, 30, 0).Equal(standard))
	assert.True(t, utcTime(2024, 11, 3, 5, 30, 0).Equal(daylight))
	assert.Equal(t, 6, standard.Hour())
	assert.Equal(t, 5, daylight.Hour())

	natural := mustInstant(t, n.Normalize("November 3, 2024, 1:30 AM", "America/New_York", false))
	assert.True(t, standard.Equal(natural))
}

func TestNormalize_NamedZoneOutsideTransitions(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		tz   string
		raw  string
		want time.Time
	}{
		{"America/New_York", "2024-01-15 12:00:00", utcTime(2024, 1, 15, 17, 0, 0)},
		{"America/New_York", "2024-07-15 12:00:00", utcTime(2024, 7, 15, 16, 0, 0)},
		{"Asia/Tokyo", "2024-01-15 09:00:00", utcTime(2024, 1, 15, 0, 0, 0)},
		{"Europe/London", "15/01/2024 3:45 PM", utcTime(2024, 1, 15, 15, 45, 0)},
		{"Europe/Paris", "15-Jan-2024 15:45", utcTime(2024, 1, 15, 14, 45, 0)},
		{"Australia/Sydney", "2024-01-15 11:00:00", utcTime(2024, 1, 15, 0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.tz+" "+tt.raw, func(t *testing.T) {
			o := n.Normalize(tt.raw, tt.tz, false)
			got := mustInstant(t, o)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, 0, o.Issues().Len())
		})
	}
}

func TestNormalize_UnknownZoneFallsBackToUTC(t *testing.T) {
	o := NewNormalizer().Normalize("2024-01-15 12:00:00", "Mars/Olympus_Mons", false)

	assert.True(t, utcTime(2024, 1, 15, 12, 0, 0).Equal(mustInstant(t, o)))
	assert.Equal(t, []domain.IssueFlag{domain.IssueInvalidTimezone}, o.Issues().Slice())
}

func TestNormalize_ExplicitOffsetIsNotRelocalised(t *testing.T) {
	o := NewNormalizer().Normalize("2024-01-15T14:30:00+02:00", "America/New_York", false)

	assert.True(t, utcTime(2024, 1, 15, 12, 30, 0).Equal(mustInstant(t, o)))
	assert.Equal(t, 0, o.Issues().Len())
}
