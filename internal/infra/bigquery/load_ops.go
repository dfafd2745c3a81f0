package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// encodeNDJSON writes one JSON object per line.
func encodeNDJSON[T any](rows []T) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return nil, fmt.Errorf("encodeNDJSON: row %d: %w", i, err)
		}
	}
	return buf, nil
}

// loadNDJSONWithClient runs a load job into table and waits for it. Load jobs
// are used instead of streaming inserts so the table can be truncated right
// after a write; rows in the streaming buffer block DML.
func loadNDJSONWithClient(ctx context.Context, client *bigquery.Client, datasetID, table string, data *bytes.Buffer, disposition bigquery.TableWriteDisposition) error {
	source := bigquery.NewReaderSource(data)
	source.SourceFormat = bigquery.JSON

	loader := client.Dataset(datasetID).Table(table).LoaderFrom(source)
	loader.WriteDisposition = disposition
	loader.CreateDisposition = bigquery.CreateNever

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("load %s: run: %w", table, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("load %s: wait for job: %w", table, err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("load %s: job error: %w", table, err)
	}

	return nil
}

// runDMLWithClient runs a statement and waits for it to finish.
func runDMLWithClient(ctx context.Context, client *bigquery.Client, sql string, params ...bigquery.QueryParameter) error {
	q := client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
