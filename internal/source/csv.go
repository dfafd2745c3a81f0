package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// Column names of the ingestion file.
const (
	ColTransactionID   = "transaction_id"
	ColCustomerID      = "customer_id"
	ColAmount          = "amount"
	ColCurrency        = "currency"
	ColTimestamp       = "timestamp"
	ColTimezone        = "timezone"
	ColStatus          = "status"
	ColProductCategory = "product_category"
)

// Header is the column order written by the sample generator.
var Header = []string{
	ColTransactionID, ColCustomerID, ColAmount, ColCurrency,
	ColTimestamp, ColTimezone, ColStatus, ColProductCategory,
}

var requiredColumns = []string{
	ColTransactionID, ColCustomerID, ColAmount, ColCurrency,
	ColTimestamp, ColStatus, ColProductCategory,
}

// ReadTransactions parses a CSV stream with a header row. Columns are located
// by name; timezone may be absent, in which case every row has an empty zone.
// Any unreadable line or amount fails the whole read.
func ReadTransactions(r io.Reader) ([]domain.RawTransaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ReadTransactions: read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		idx[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("ReadTransactions: %q: %w", col, ErrMissingColumn)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []domain.RawTransaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadTransactions: line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		amount, err := decimal.NewFromString(field(rec, ColAmount))
		if err != nil {
			return nil, fmt.Errorf("ReadTransactions: line %d: amount %q: %w", line, field(rec, ColAmount), err)
		}

		rows = append(rows, domain.RawTransaction{
			TransactionID: field(rec, ColTransactionID),
			CustomerID:    field(rec, ColCustomerID),
			Amount:        amount,
			Currency:      field(rec, ColCurrency),
			RawTimestamp:  field(rec, ColTimestamp),
			RawTimezone:   field(rec, ColTimezone),
			Status:        domain.Status(field(rec, ColStatus)),
			Category:      field(rec, ColProductCategory),
		})
	}

	return rows, nil
}
