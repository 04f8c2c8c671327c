package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("submission stored", "submission_id", "abc", "subject_ref", "lead-42", "api_key", "s3cr3t")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["submission_id"] != "abc" {
		t.Errorf("expected submission_id to pass through, got %v", fields["submission_id"])
	}
	if fields["api_key"] != "[REDACTED]" {
		t.Errorf("expected api_key redacted, got %v", fields["api_key"])
	}
	ref, _ := fields["subject_ref"].(string)
	if !strings.HasPrefix(ref, "hash:") || strings.Contains(ref, "lead-42") {
		t.Errorf("expected hashed subject_ref, got %v", fields["subject_ref"])
	}
}

func TestNewLevels(t *testing.T) {
	if _, err := New("prod", "debug"); err != nil {
		t.Errorf("New(prod, debug) error: %v", err)
	}
	if _, err := New("dev", ""); err != nil {
		t.Errorf("New(dev) error: %v", err)
	}
	if _, err := New("dev", "loud"); err == nil {
		t.Error("expected invalid level to fail")
	}
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.With("k", "v").Error("ignored", "odd")
}
