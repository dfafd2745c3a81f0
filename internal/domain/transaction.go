package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state reported by the upstream shop for a transaction.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// CanonicalTimezone is the zone every stored instant is expressed in.
const CanonicalTimezone = "UTC"

// RawTransaction is one row as supplied by the ingestion source. Nothing in it
// has been validated; TransactionID is not guaranteed to be unique.
type RawTransaction struct {
	TransactionID string
	CustomerID    string
	Amount        decimal.Decimal
	Currency      string
	RawTimestamp  string
	RawTimezone   string
	Status        Status
	Category      string
}

// CanonicalTransaction is a raw row whose timestamp was normalized to UTC and
// which survived duplicate detection. It always carries an instant; rows that
// failed to parse are never turned into a CanonicalTransaction.
type CanonicalTransaction struct {
	RawTransaction

	UTCInstant         time.Time
	NormalizedTimezone string
	Issues             Issues

	// BatchSequence is the row position within its ingestion run. It is only
	// meaningful inside that run.
	BatchSequence int
}

// ErrFatalOutcome is returned when a canonical record is requested for a row
// whose timestamp could not be parsed.
var ErrFatalOutcome = errors.New("parse outcome carries no instant")

// NewCanonicalTransaction builds the accepted form of raw from a successful
// parse outcome.
func NewCanonicalTransaction(raw RawTransaction, outcome ParseOutcome, seq int) (CanonicalTransaction, error) {
	instant, ok := outcome.Instant()
	if !ok {
		return CanonicalTransaction{}, fmt.Errorf("NewCanonicalTransaction %q: %w", raw.TransactionID, ErrFatalOutcome)
	}
	return CanonicalTransaction{
		RawTransaction:     raw,
		UTCInstant:         instant.UTC(),
		NormalizedTimezone: CanonicalTimezone,
		Issues:             outcome.Issues().Clone(),
		BatchSequence:      seq,
	}, nil
}

// Sale is the (instant, amount) pair the aggregation engine works on.
type Sale struct {
	Instant time.Time
	Amount  decimal.Decimal
}
