package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

// TransactionsSchema is inferred from TransactionRow.
func TransactionsSchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return nil, fmt.Errorf("TransactionsSchema: %w", err)
	}
	// processed_timestamp is the only nullable column.
	for _, f := range schema {
		f.Required = f.Name != "processed_timestamp"
	}
	return schema, nil
}

// QualitySchema is inferred from QualityRow.
func QualitySchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(QualityRow{})
	if err != nil {
		return nil, fmt.Errorf("QualitySchema: %w", err)
	}
	return schema, nil
}

// EnsureSchemaWithClient creates the dataset and both tables when missing.
func EnsureSchemaWithClient(ctx context.Context, client *bigquery.Client, datasetID string, log zerolog.Logger) error {
	ds := client.Dataset(datasetID)
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
		if !isAlreadyExists(err) {
			return fmt.Errorf("EnsureSchema: create dataset %s: %w", datasetID, err)
		}
	} else {
		log.Info().Str("dataset", datasetID).Msg("Created dataset")
	}

	txSchema, err := TransactionsSchema()
	if err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	qSchema, err := QualitySchema()
	if err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}

	tables := []struct {
		name string
		meta *bigquery.TableMetadata
	}{
		{transactionsTable, &bigquery.TableMetadata{
			Schema: txSchema,
			TimePartitioning: &bigquery.TimePartitioning{
				Type:  bigquery.DayPartitioningType,
				Field: "processed_timestamp",
			},
		}},
		{qualityTable, &bigquery.TableMetadata{Schema: qSchema}},
	}

	for _, t := range tables {
		if err := ds.Table(t.name).Create(ctx, t.meta); err != nil {
			if isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("EnsureSchema: create table %s: %w", t.name, err)
		}
		log.Info().Str("dataset", datasetID).Str("table", t.name).Msg("Created table")
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
