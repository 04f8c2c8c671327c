package submission

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/riskframe/riskframe/internal/blob"
	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/internal/schema"
	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

// countingStore wraps a Store and counts successful writes.
type countingStore struct {
	Store
	mu      sync.Mutex
	created int
}

func (c *countingStore) Create(ctx context.Context, s *Submission) error {
	if err := c.Store.Create(ctx, s); err != nil {
		return err
	}
	c.mu.Lock()
	c.created++
	c.mu.Unlock()
	return nil
}

type fixture struct {
	registry *registry.Service
	store    *countingStore
	svc      *Service
	version  *registry.Version
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	v, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error: %v", err)
	}
	reg := registry.NewService(registry.NewMemoryStore(), v)
	for _, q := range questionnaire.ThreePillarQuestions() {
		if _, err := reg.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("CreateQuestion() error: %v", err)
		}
	}
	if _, err := reg.CreateFramework(ctx, registry.Framework{Code: "investor-risk"}); err != nil {
		t.Fatalf("CreateFramework() error: %v", err)
	}
	version, err := reg.PublishVersion(ctx, registry.PublishRequest{
		FrameworkCode: "investor-risk",
		Config:        scoring.ThreePillarConfig(),
		Bindings:      questionnaire.ThreePillarBindings(),
		Activate:      true,
	})
	if err != nil {
		t.Fatalf("PublishVersion() error: %v", err)
	}

	store := &countingStore{Store: NewBlobStore(blob.NewLocalStorage(t.TempDir()))}
	return &fixture{
		registry: reg,
		store:    store,
		svc:      NewService(reg, store, nil),
		version:  version,
	}
}

func answers(need float64) map[string]any {
	return map[string]any{
		"age":                     "25-35",
		"emi_ratio":               15,
		"liquidity_withdrawal_2y": "5%",
		"income_security":         "Very secure",
		"market_knowledge":        "High",
		"drawdown_reaction":       "Buy more",
		"gain_loss_tradeoff":      "Loss25Gain50",
		"goal_required_return":    need,
	}
}

func cautiousAnswers() map[string]any {
	return map[string]any{
		"age":                     "51+",
		"emi_ratio":               "40",
		"liquidity_withdrawal_2y": "50%",
		"income_security":         "Not secure",
		"market_knowledge":        "Low",
		"drawdown_reaction":       "Sell",
		"gain_loss_tradeoff":      "NoLossEvenIfLowGain",
		"goal_required_return":    15,
	}
}

func TestSubmitReferenceScenarios(t *testing.T) {
	tests := []struct {
		name         string
		answers      map[string]any
		wantBucket   string
		wantWarnings int
	}{
		{name: "achievable goals", answers: answers(12), wantBucket: "Aggressive", wantWarnings: 0},
		{name: "goals need revisiting", answers: cautiousAnswers(), wantBucket: "Conservative", wantWarnings: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sub, err := f.svc.Submit(context.Background(), SubmitRequest{
				VersionID:  f.version.ID,
				SubjectRef: "client-42",
				Answers:    tt.answers,
			})
			if err != nil {
				t.Fatalf("Submit() error: %v", err)
			}
			if sub.Result.Bucket != tt.wantBucket {
				t.Errorf("expected bucket %s, got %s", tt.wantBucket, sub.Result.Bucket)
			}
			if len(sub.Result.Warnings) != tt.wantWarnings {
				t.Errorf("expected %d warnings, got %v", tt.wantWarnings, sub.Result.Warnings)
			}
			if sub.VersionNumber != 1 || sub.FrameworkCode != "investor-risk" {
				t.Errorf("unexpected version metadata %s/%d", sub.FrameworkCode, sub.VersionNumber)
			}
			if sub.EngineVersion != scoring.Version {
				t.Errorf("expected engine version %s, got %s", scoring.Version, sub.EngineVersion)
			}
			if len(sub.Questions) != len(questionnaire.ThreePillarBindings()) {
				t.Errorf("expected frozen questions, got %d", len(sub.Questions))
			}
		})
	}
}

func TestSubmitFailuresStoreNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := answers(12)
	delete(missing, "drawdown_reaction")
	badOption := answers(12)
	badOption["market_knowledge"] = "Expert"

	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr error
	}{
		{name: "unknown version", req: SubmitRequest{VersionID: "nope", Answers: answers(12)}, wantErr: registry.ErrVersionNotFound},
		{name: "missing answer", req: SubmitRequest{VersionID: f.version.ID, Answers: missing}},
		{name: "invalid option", req: SubmitRequest{VersionID: f.version.ID, Answers: badOption}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil {
				var verr *questionnaire.ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			}
		})
	}
	if f.store.created != 0 {
		t.Errorf("expected nothing stored, got %d submissions", f.store.created)
	}
}

type failingPreparer struct{ err error }

func (p failingPreparer) Prepare(context.Context, string) (*registry.Prepared, error) {
	return nil, p.err
}

func TestSubmitIntegrityFailure(t *testing.T) {
	store := &countingStore{Store: NewBlobStore(blob.NewLocalStorage(t.TempDir()))}
	svc := NewService(failingPreparer{err: fmt.Errorf("%w: corrupted", scoring.ErrIntegrity)}, store, nil)

	_, err := svc.Submit(context.Background(), SubmitRequest{VersionID: "v", Answers: answers(12)})
	if !errors.Is(err, scoring.ErrIntegrity) {
		t.Errorf("expected ErrIntegrity, got %v", err)
	}
	if store.created != 0 {
		t.Error("expected nothing stored")
	}
}

func TestGetReturnsFrozenSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Submit(ctx, SubmitRequest{VersionID: f.version.ID, Answers: answers(12)})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	// Later catalog changes must not reach the snapshot.
	if err := f.registry.DeactivateQuestion(ctx, "age"); err != nil {
		t.Fatalf("DeactivateQuestion() error: %v", err)
	}
	if _, err := f.registry.PublishVersion(ctx, registry.PublishRequest{
		FrameworkCode: "investor-risk",
		Config:        scoring.ThreePillarConfig(),
		Bindings:      questionnaire.ThreePillarBindings(),
		Activate:      true,
	}); err == nil {
		t.Fatal("expected publish with a deactivated question to fail")
	}

	got, err := f.svc.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.Result.Equal(sub.Result) {
		t.Errorf("stored result differs: %+v vs %+v", got.Result, sub.Result)
	}
	if got.Questions[0].Key != "age" || got.Answers["age"].Text != "25-35" {
		t.Errorf("expected frozen age question and answer, got %+v", got.Questions[0])
	}
	if got.Config.Formula != sub.Config.Formula {
		t.Errorf("expected frozen formula %q, got %q", sub.Config.Formula, got.Config.Formula)
	}

	if _, err := f.svc.Get(ctx, "../../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed id, got %v", err)
	}
	if _, err := f.svc.Get(ctx, "6f1c2a8e-0000-4000-8000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestSnapshotSurvivesNewActiveVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Submit(ctx, SubmitRequest{VersionID: f.version.ID, Answers: answers(12)})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	before, err := f.svc.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	// Catalog change: a new question bound only by the next version.
	if _, err := f.registry.CreateQuestion(ctx, questionnaire.Question{
		Key: "horizon", Label: "Investment horizon", Type: questionnaire.SingleSelect,
		Options: []string{"Under 3 years", "3-7 years", "Over 7 years"},
	}); err != nil {
		t.Fatalf("CreateQuestion() error: %v", err)
	}

	cfg := scoring.ThreePillarConfig()
	cfg.Pillars[1].Inputs[1].Rule.Table = map[string]float64{"Sell": 0, "Hold": 40, "Buy more": 70}
	bindings := questionnaire.ThreePillarBindings()
	for i := range bindings {
		switch bindings[i].Question {
		case "market_knowledge":
			bindings[i].Label = "How well do you know the markets?"
		case "drawdown_reaction":
			bindings[i].Options = []string{"Sell", "Hold", "Buy more"}
		}
	}
	bindings = append(bindings, questionnaire.Binding{Question: "horizon", Order: 10})

	v2, err := f.registry.PublishVersion(ctx, registry.PublishRequest{
		FrameworkCode: "investor-risk",
		Config:        cfg,
		Bindings:      bindings,
		Activate:      true,
	})
	if err != nil {
		t.Fatalf("PublishVersion(v2) error: %v", err)
	}
	active, err := f.registry.ActiveVersion(ctx, "investor-risk")
	if err != nil || active.ID != v2.ID {
		t.Fatalf("expected v2 active, got %+v (%v)", active, err)
	}

	// The same answers score differently under v2.
	newer, err := f.svc.Submit(ctx, SubmitRequest{VersionID: v2.ID, Answers: answers(12)})
	if err != nil {
		t.Fatalf("Submit(v2) error: %v", err)
	}
	if newer.Result.Equal(sub.Result) {
		t.Fatal("expected v2 to change the result")
	}

	after, err := f.svc.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Get() after v2 error: %v", err)
	}
	if !reflect.DeepEqual(after.Questions, before.Questions) {
		t.Errorf("frozen questions changed: %+v", after.Questions)
	}
	if !reflect.DeepEqual(after.Config, before.Config) {
		t.Errorf("frozen config changed: %+v", after.Config)
	}
	if !reflect.DeepEqual(after.Answers, before.Answers) {
		t.Errorf("frozen answers changed: %+v", after.Answers)
	}
	if !after.Result.Equal(sub.Result) || after.VersionID != f.version.ID {
		t.Errorf("stored result or version changed: %+v", after)
	}
	for _, q := range after.Questions {
		if q.Key == "market_knowledge" && q.Label == "How well do you know the markets?" {
			t.Error("snapshot picked up the v2 label override")
		}
		if q.Key == "drawdown_reaction" && len(q.Options) != 4 {
			t.Errorf("snapshot picked up the v2 options override: %v", q.Options)
		}
		if q.Key == "horizon" {
			t.Error("snapshot picked up a question bound only by v2")
		}
	}

	report, err := f.svc.ReScore(ctx, sub.ID, RescoreOptions{})
	if err != nil {
		t.Fatalf("ReScore() error: %v", err)
	}
	if !report.Match {
		t.Errorf("expected rescore under the frozen config to match, got %+v", report.Result)
	}
}

func TestReScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Submit(ctx, SubmitRequest{VersionID: f.version.ID, Answers: cautiousAnswers()})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	report, err := f.svc.ReScore(ctx, sub.ID, RescoreOptions{})
	if err != nil {
		t.Fatalf("ReScore() error: %v", err)
	}
	if !report.Match {
		t.Errorf("expected rescore to match, got %+v vs %+v", report.Result, sub.Result)
	}
	if report.Persisted != nil || f.store.created != 1 {
		t.Error("expected a dry-run rescore to store nothing")
	}

	report, err = f.svc.ReScore(ctx, sub.ID, RescoreOptions{Persist: true})
	if err != nil {
		t.Fatalf("ReScore(persist) error: %v", err)
	}
	if report.Persisted == nil || report.Persisted.RescoreOf != sub.ID || report.Persisted.ID == sub.ID {
		t.Fatalf("expected a new submission linked to the original, got %+v", report.Persisted)
	}
	stored, err := f.svc.Get(ctx, report.Persisted.ID)
	if err != nil {
		t.Fatalf("Get(rescored) error: %v", err)
	}
	if stored.RescoreOf != sub.ID || !stored.Result.Equal(sub.Result) {
		t.Errorf("unexpected rescored submission %+v", stored)
	}
}

func TestReScoreDetectsMismatch(t *testing.T) {
	store := &countingStore{Store: NewBlobStore(blob.NewLocalStorage(t.TempDir()))}
	f := newFixture(t)
	svc := NewService(f.registry, store, nil)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, SubmitRequest{VersionID: f.version.ID, Answers: answers(12)})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	// Simulate a result written by an engine that scored differently.
	tampered := *sub
	tampered.ID = "0b7f6c1e-1111-4000-8000-000000000000"
	tampered.Result = &scoring.Result{Bucket: "Moderate", Decision: 50, PillarScores: map[string]float64{}}
	if err := store.Create(ctx, &tampered); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	report, err := svc.ReScore(ctx, tampered.ID, RescoreOptions{})
	if err != nil {
		t.Fatalf("ReScore() error: %v", err)
	}
	if report.Match {
		t.Error("expected mismatch to be reported")
	}
	if report.Result.Bucket != "Aggressive" {
		t.Errorf("expected recomputed bucket Aggressive, got %s", report.Result.Bucket)
	}
}

func TestBlobStoreRejectsDuplicateIDs(t *testing.T) {
	store := NewBlobStore(blob.NewLocalStorage(t.TempDir()))
	ctx := context.Background()
	sub := &Submission{ID: "5d7e0a9c-2222-4000-8000-000000000000", Result: &scoring.Result{Bucket: "Moderate"}}

	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Create(ctx, sub); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
