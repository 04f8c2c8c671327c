package schema

import (
	"errors"
	"sync"
	"testing"

	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error: %v", err)
	}
	return v
}

func TestValidateVersionAcceptsReference(t *testing.T) {
	v := newValidator(t)
	if err := v.ValidateVersion(scoring.ThreePillarConfig(), questionnaire.ThreePillarBindings()); err != nil {
		t.Errorf("expected reference version to pass, got %v", err)
	}
	if err := v.ValidateVersion(scoring.ThreePillarConfig(), nil); err != nil {
		t.Errorf("expected version without bindings to pass, got %v", err)
	}
}

func TestValidateVersionRejectsMalformed(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name     string
		mutate   func(cfg *scoring.Config)
		bindings []questionnaire.Binding
	}{
		{
			name: "categorical rule with expression",
			mutate: func(cfg *scoring.Config) {
				cfg.Pillars[0].Inputs[0].Rule.Expr = "value"
			},
		},
		{
			name:   "weight above one",
			mutate: func(cfg *scoring.Config) { cfg.Pillars[0].Weight = 1.5 },
		},
		{
			name:   "empty formula",
			mutate: func(cfg *scoring.Config) { cfg.Formula = "" },
		},
		{
			name:   "unknown rule type",
			mutate: func(cfg *scoring.Config) { cfg.Pillars[0].Inputs[0].Rule.Type = "script" },
		},
		{
			name:   "pillar name with spaces",
			mutate: func(cfg *scoring.Config) { cfg.Pillars[0].Name = "risk capacity" },
		},
		{
			name:     "unknown transform",
			mutate:   func(cfg *scoring.Config) {},
			bindings: []questionnaire.Binding{{Question: "age", Order: 1, Transform: "log"}},
		},
		{
			name:     "negative order",
			mutate:   func(cfg *scoring.Config) {},
			bindings: []questionnaire.Binding{{Question: "age", Order: -1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scoring.ThreePillarConfig()
			tt.mutate(&cfg)
			err := v.ValidateVersion(cfg, tt.bindings)
			var serr *Error
			if !errors.As(err, &serr) {
				t.Fatalf("expected *schema.Error, got %v", err)
			}
			if len(serr.Problems) == 0 {
				t.Error("expected at least one problem")
			}
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	v := newValidator(t)

	for _, q := range questionnaire.ThreePillarQuestions() {
		if err := v.ValidateQuestion(q); err != nil {
			t.Errorf("expected %s to pass, got %v", q.Key, err)
		}
	}

	bad := []questionnaire.Question{
		{Key: "Age Band", Label: "Age", Type: questionnaire.Text},
		{Key: "age", Label: "Age", Type: "slider"},
		{Key: "age", Label: "Age", Type: questionnaire.SingleSelect},
		{Key: "age", Type: questionnaire.Text},
	}
	for _, q := range bad {
		if err := v.ValidateQuestion(q); err == nil {
			t.Errorf("expected %+v to be rejected", q)
		}
	}
}

func TestValidatorConcurrentUse(t *testing.T) {
	v := newValidator(t)
	cfg := scoring.ThreePillarConfig()
	bindings := questionnaire.ThreePillarBindings()
	questions := questionnaire.ThreePillarQuestions()

	var wg sync.WaitGroup
	errs := make(chan error, 16*20*(1+len(questions)))
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				errs <- v.ValidateVersion(cfg, bindings)
				for _, q := range questions {
					errs <- v.ValidateQuestion(q)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent validation failed: %v", err)
		}
	}
}
