package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/riskframe/riskframe/internal/blob"
)

const blobKind = "submissions"

// BlobStore keeps each submission as one JSON object in blob storage.
type BlobStore struct {
	storage blob.StorageClient
}

// NewBlobStore creates a BlobStore over storage.
func NewBlobStore(storage blob.StorageClient) *BlobStore {
	return &BlobStore{storage: storage}
}

func (b *BlobStore) Create(ctx context.Context, s *Submission) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := b.storage.Put(ctx, blobKind, s.ID, data); err != nil {
		if errors.Is(err, blob.ErrObjectExists) {
			return fmt.Errorf("submission %s: %w", s.ID, ErrExists)
		}
		return fmt.Errorf("store submission: %w", err)
	}
	return nil
}

func (b *BlobStore) Get(ctx context.Context, id string) (*Submission, error) {
	data, err := b.storage.Get(ctx, blobKind, id)
	if errors.Is(err, blob.ErrObjectNotFound) {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}
	var s Submission
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("submission %s: decode: %w", id, err)
	}
	return &s, nil
}
