package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

const (
	transactionsTable = "transactions"
	qualityTable      = "data_quality_summary"
)

func tableRef(projectID, datasetID, table string) string {
	return "`" + projectID + "." + datasetID + "." + table + "`"
}

// LoadTransactionsWithClient writes recs into analytics.transactions with a
// load job. WriteTruncate swaps the table contents atomically.
func LoadTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, recs []domain.CanonicalTransaction, disposition bigquery.TableWriteDisposition) error {
	if len(recs) == 0 {
		if disposition == bigquery.WriteTruncate {
			return TruncateTransactionsWithClient(ctx, client, datasetID)
		}
		return nil
	}

	now := time.Now()
	rows := make([]transactionLoadRow, 0, len(recs))
	for _, rec := range recs {
		row, err := toLoadRow(rec, now)
		if err != nil {
			return fmt.Errorf("LoadTransactions: %w", err)
		}
		rows = append(rows, row)
	}

	data, err := encodeNDJSON(rows)
	if err != nil {
		return fmt.Errorf("LoadTransactions: %w", err)
	}

	if err := loadNDJSONWithClient(ctx, client, datasetID, transactionsTable, data, disposition); err != nil {
		return fmt.Errorf("LoadTransactions: %w", err)
	}
	return nil
}

func completedSalesSQL(projectID, datasetID string) string {
	return `
		SELECT processed_timestamp, amount
		FROM ` + tableRef(projectID, datasetID, transactionsTable) + `
		WHERE status = 'completed'
		  AND processed_timestamp IS NOT NULL
		  AND DATE(processed_timestamp) BETWEEN @start_date AND @end_date
		ORDER BY processed_timestamp
	`
}

// QueryCompletedSalesWithClient selects completed sales whose UTC date lies
// in [from, to].
func QueryCompletedSalesWithClient(ctx context.Context, client *bigquery.Client, datasetID string, from, to civil.Date) ([]domain.Sale, error) {
	q := client.Query(completedSalesSQL(client.Project(), datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: from},
		{Name: "end_date", Value: to},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryCompletedSales: query read: %w", err)
	}

	var sales []domain.Sale
	for {
		var r saleRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryCompletedSales: iter next: %w", err)
		}
		s, err := r.toSale()
		if err != nil {
			return nil, fmt.Errorf("QueryCompletedSales: %w", err)
		}
		sales = append(sales, s)
	}

	return sales, nil
}

// CountTransactionsWithClient counts rows, optionally only those with an instant.
func CountTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, processedOnly bool) (int, error) {
	sql := "SELECT COUNT(*) AS n FROM " + tableRef(client.Project(), datasetID, transactionsTable)
	if processedOnly {
		sql += " WHERE processed_timestamp IS NOT NULL"
	}

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: query read: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("CountTransactions: iter next: %w", err)
	}
	return int(row.N), nil
}
