package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// TruncateTransactionsWithClient removes every stored transaction.
func TruncateTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string) error {
	if err := runDMLWithClient(ctx, client, "TRUNCATE TABLE "+tableRef(client.Project(), datasetID, transactionsTable)); err != nil {
		return fmt.Errorf("TruncateTransactions: %w", err)
	}
	return nil
}
