package app

import (
	"context"
	"testing"

	"github.com/riskframe/riskframe/internal/platform/logger"
	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/internal/schema"
	"github.com/riskframe/riskframe/internal/submission"
	"github.com/riskframe/riskframe/pkg/config"
)

func TestSubmissionStoreSelection(t *testing.T) {
	a := &App{}
	ctx := context.Background()

	store, err := a.submissionStore(ctx, config.StorageConfig{Backend: config.StorageLocal, LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("local backend: %v", err)
	}
	if _, ok := store.(*submission.BlobStore); !ok {
		t.Errorf("local backend: expected *submission.BlobStore, got %T", store)
	}

	store, err = a.submissionStore(ctx, config.StorageConfig{Backend: config.StoragePostgres})
	if err != nil {
		t.Fatalf("postgres backend: %v", err)
	}
	if _, ok := store.(*submission.PostgresStore); !ok {
		t.Errorf("postgres backend: expected *submission.PostgresStore, got %T", store)
	}

	if _, err := a.submissionStore(ctx, config.StorageConfig{Backend: "tape"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSeed(t *testing.T) {
	v, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error: %v", err)
	}
	a := &App{
		Registry: registry.NewService(registry.NewMemoryStore(), v),
		Log:      logger.NewNop(),
	}
	ctx := context.Background()

	r, err := a.Seed(ctx, "../../testdata")
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	if r.QuestionsCreated != 9 || len(r.VersionsPublished) != 1 {
		t.Errorf("unexpected report %+v", r)
	}

	active, err := a.Registry.ActiveVersion(ctx, "investor-risk")
	if err != nil {
		t.Fatalf("ActiveVersion() error: %v", err)
	}
	if active.Number != 1 {
		t.Errorf("expected version 1 active, got %d", active.Number)
	}

	if _, err := a.Seed(ctx, "../../does-not-exist"); err == nil {
		t.Error("expected error for a missing seed directory")
	}
}

func TestCloseWithoutBackends(t *testing.T) {
	a := &App{}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
