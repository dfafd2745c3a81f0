package source

import (
	"context"
	"fmt"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// CSVSource loads an ingestion batch from a CSV file at URI, which may be a
// local path or a gs:// object.
type CSVSource struct {
	URI string
}

func NewCSVSource(uri string) *CSVSource {
	return &CSVSource{URI: uri}
}

// LoadTransactions implements pipeline.RowSource.
func (s *CSVSource) LoadTransactions(ctx context.Context) ([]domain.RawTransaction, error) {
	rc, err := Open(ctx, s.URI)
	if err != nil {
		return nil, fmt.Errorf("LoadTransactions: %w", err)
	}
	defer rc.Close()

	rows, err := ReadTransactions(rc)
	if err != nil {
		return nil, fmt.Errorf("LoadTransactions %s: %w", s.URI, err)
	}
	return rows, nil
}
