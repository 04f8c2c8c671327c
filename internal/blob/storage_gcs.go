package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStorage implements StorageClient using Google Cloud Storage.
type GCSStorage struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a GCS-backed StorageClient.
// It uses Application Default Credentials (works with Workload Identity, SA keys, gcloud auth).
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put writes an object only if none exists under the key.
func (s *GCSStorage) Put(ctx context.Context, kind, id string, data []byte) error {
	key := s.prefix + objectKey(kind, id)
	obj := s.client.Bucket(s.bucket).Object(key).If(gcs.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return fmt.Errorf("gcs %s: %w", key, ErrObjectExists)
		}
		return fmt.Errorf("gcs close %s: %w", key, err)
	}
	return nil
}

// Get reads an object.
func (s *GCSStorage) Get(ctx context.Context, kind, id string) ([]byte, error) {
	key := s.prefix + objectKey(kind, id)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("gcs %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
