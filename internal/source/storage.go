// Package source reads ingestion files from local disk or Cloud Storage.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// IsGCSURI reports whether uri names a Cloud Storage object.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, gcsScheme)
}

// SplitGCSURI splits gs://bucket/path/to/object into bucket and object name.
func SplitGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ObjectName returns the last path element of a local path or GCS URI.
// "gs://bucket/exports/jan.csv" gives "jan.csv".
func ObjectName(uri string) string {
	if IsGCSURI(uri) {
		if _, object, err := SplitGCSURI(uri); err == nil {
			return path.Base(object)
		}
		return strings.TrimPrefix(uri, gcsScheme)
	}
	return path.Base(uri)
}

// Open returns a reader for a local file or a gs:// object. The storage
// client, if any, is closed together with the reader.
func Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !IsGCSURI(uri) {
		f, err := os.Open(uri)
		if err != nil {
			return nil, fmt.Errorf("Open: %q: %w", uri, err)
		}
		return f, nil
	}

	bucket, object, err := SplitGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Open: creating storage client: %w", err)
	}

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("Open: reading object %s/%s: %w", bucket, object, err)
	}

	return &objectReader{Reader: rc, client: client}, nil
}

type objectReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *objectReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
// It assumes Application Default Credentials are configured.
func UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("UploadFile: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}

	return nil
}
