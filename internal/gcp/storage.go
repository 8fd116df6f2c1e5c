package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ParseGCSURI splits gs://bucket/object into its bucket and object names.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid GCS URI %q: missing gs:// prefix", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("invalid GCS URI %q: want gs://bucket/object", uri)
	}
	return bucket, object, nil
}

// StorageStore moves files between the local disk and Cloud Storage.
type StorageStore struct {
	client *storage.Client
	// IfAbsent makes uploads skip objects that already exist.
	IfAbsent bool
}

// NewStorageStore creates a Cloud Storage client.
func NewStorageStore(ctx context.Context) (*StorageStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &StorageStore{client: client}, nil
}

func (s *StorageStore) Close() error {
	return s.client.Close()
}

// List returns the names of the objects directly under prefix. Objects in
// deeper "directories" are not returned.
func (s *StorageStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		if attrs.Name == "" {
			continue // synthetic prefix entry
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Download streams gs://bucket/object to destPath.
func (s *StorageStore) Download(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create local file at %s: %w", destPath, err)
	}
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		localFile.Close()
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return localFile.Close()
}

// Upload copies localPath to gs://bucket/object, retrying with exponential
// backoff.
func (s *StorageStore) Upload(ctx context.Context, localPath, bucket, object string) error {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := s.uploadOnce(ctx, localPath, bucket, object)
		if err == nil {
			return nil
		}
		if errors.Is(err, errObjectExists) {
			slog.Info("SKIPPING: object already exists.", "gcsObject", object, "bucket", bucket)
			return nil // Not a failure in an idempotent workflow.
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", object,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", object, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", object, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

var errObjectExists = errors.New("object already exists")

func (s *StorageStore) uploadOnce(ctx context.Context, localPath, bucket, object string) error {
	localFileReader, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer localFileReader.Close()

	writeCtx, cancel := context.WithTimeout(ctx, time.Minute*2)
	defer cancel()

	obj := s.client.Bucket(bucket).Object(object)
	if s.IfAbsent {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	gcsWriter := obj.NewWriter(writeCtx)
	gcsWriter.ContentType = "application/pdf"

	if _, err := io.Copy(gcsWriter, localFileReader); err != nil {
		_ = gcsWriter.Close()
		return classifyWriteErr(fmt.Errorf("io.Copy to GCS failed: %w", err))
	}
	if err := gcsWriter.Close(); err != nil {
		return classifyWriteErr(fmt.Errorf("failed to close GCS writer (finalize upload): %w", err))
	}
	return nil
}

// classifyWriteErr maps a failed precondition to errObjectExists.
func classifyWriteErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 412 {
		return fmt.Errorf("%w: %v", errObjectExists, err)
	}
	return err
}
