package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/dvloznov/commerce-analytics/internal/logger"
	"github.com/dvloznov/commerce-analytics/internal/source"
)

func main() {
	log := logger.New()

	var (
		dest       string
		bucketName string
		objectName string
		filePath   string
	)

	flag.StringVar(&dest, "dest", "", "Destination gs://bucket/object URI (alternative to -bucket/-object)")
	flag.StringVar(&bucketName, "bucket", "", "GCS bucket name")
	flag.StringVar(&objectName, "object", "", "GCS object name (defaults to the file name)")
	flag.StringVar(&filePath, "file", "", "Path to local CSV file (required)")
	flag.Parse()

	if filePath == "" {
		log.Fatal().Msg("Usage: upload-csv -file transactions.csv (-dest gs://bucket/object | -bucket BUCKET [-object OBJECT])")
	}

	bucketName, objectName, err := destination(dest, bucketName, objectName, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid destination")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Only upload what an ingestion run could read.
	rows, err := source.NewCSVSource(filePath).LoadTransactions(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("file", filePath).Msg("File is not a valid transactions CSV")
	}

	log.Info().
		Str("bucket", bucketName).
		Str("object", objectName).
		Int("rows", len(rows)).
		Msg("Uploading transactions to GCS")

	if err := source.UploadFile(ctx, bucketName, objectName, filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("gs://%s/%s\n", bucketName, objectName)
}

// destination resolves the target object from either a gs:// URI or the
// bucket and object flags. A URI ending in "/" names a prefix and gets the
// local file name appended.
func destination(dest, bucket, object, filePath string) (string, string, error) {
	if dest != "" {
		if bucket != "" || object != "" {
			return "", "", fmt.Errorf("-dest cannot be combined with -bucket or -object")
		}
		b, o, err := source.SplitGCSURI(dest)
		if err != nil {
			return "", "", err
		}
		bucket, object = b, o
	}

	if bucket == "" {
		return "", "", fmt.Errorf("a bucket is required")
	}
	if object == "" || object[len(object)-1] == '/' {
		object += filepath.Base(filePath)
	}
	return bucket, object, nil
}
