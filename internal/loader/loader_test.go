package loader

import (
	"context"
	"os"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/internal/schema"
	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

func loadTestdata(t *testing.T) *Bundle {
	t.Helper()
	b, err := Load(os.DirFS("../../testdata"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return b
}

func TestLoadMatchesBuiltinDefaults(t *testing.T) {
	b := loadTestdata(t)

	want := make(map[string]questionnaire.Question)
	for _, q := range questionnaire.ThreePillarQuestions() {
		q.Active = false
		want[q.Key] = q
	}
	if len(b.Questions) != len(want) {
		t.Fatalf("expected %d questions, got %d", len(want), len(b.Questions))
	}
	for _, q := range b.Questions {
		if !reflect.DeepEqual(q, want[q.Key]) {
			t.Errorf("question %s differs:\n got  %+v\n want %+v", q.Key, q, want[q.Key])
		}
	}

	if len(b.Frameworks) != 1 {
		t.Fatalf("expected one framework document, got %d", len(b.Frameworks))
	}
	doc := b.Frameworks[0]
	if doc.Code != "investor-risk" || !doc.Activate || doc.Path != "frameworks/three-pillar.yaml" {
		t.Errorf("unexpected framework header %+v", doc)
	}
	if !reflect.DeepEqual(doc.Config, scoring.ThreePillarConfig()) {
		t.Errorf("config differs from ThreePillarConfig:\n got  %+v\n want %+v", doc.Config, scoring.ThreePillarConfig())
	}
	if !reflect.DeepEqual(doc.Bindings, questionnaire.ThreePillarBindings()) {
		t.Errorf("bindings differ from ThreePillarBindings:\n got  %+v\n want %+v", doc.Bindings, questionnaire.ThreePillarBindings())
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{
			name: "duplicate question",
			files: fstest.MapFS{
				"questions/a.yaml": {Data: []byte("questions:\n  - {key: age, label: Age, type: text}\n")},
				"questions/b.yml":  {Data: []byte("questions:\n  - {key: age, label: Age, type: text}\n")},
			},
			wantErr: "already defined in questions/a.yaml",
		},
		{
			name: "unknown field",
			files: fstest.MapFS{
				"frameworks/x.yaml": {Data: []byte("code: x\nweights: {}\n")},
			},
			wantErr: "field weights not found",
		},
		{
			name: "missing code",
			files: fstest.MapFS{
				"frameworks/nested/x.yaml": {Data: []byte("name: X\n")},
			},
			wantErr: "framework code is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.files)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	v, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error: %v", err)
	}
	reg := registry.NewService(registry.NewMemoryStore(), v)
	ctx := context.Background()
	b := loadTestdata(t)

	r, err := Apply(ctx, reg, b, nil)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if r.QuestionsCreated != 9 || r.FrameworksCreated != 1 || len(r.VersionsPublished) != 1 {
		t.Errorf("unexpected first report %+v", r)
	}
	active, err := reg.ActiveVersion(ctx, "investor-risk")
	if err != nil {
		t.Fatalf("ActiveVersion() error: %v", err)
	}
	if active.Number != 1 {
		t.Errorf("expected version 1 active, got %d", active.Number)
	}

	r, err = Apply(ctx, reg, b, nil)
	if err != nil {
		t.Fatalf("second Apply() error: %v", err)
	}
	if r.QuestionsSkipped != 9 || r.FrameworksCreated != 0 || len(r.VersionsPublished) != 0 || len(r.VersionsUnchanged) != 1 {
		t.Errorf("expected second apply to change nothing, got %+v", r)
	}

	b.Frameworks[0].Config.Bands[0].Label = "Cautious"
	r, err = Apply(ctx, reg, b, nil)
	if err != nil {
		t.Fatalf("third Apply() error: %v", err)
	}
	if len(r.VersionsPublished) != 1 || r.VersionsPublished[0] != "investor-risk@2" {
		t.Errorf("expected a second version, got %+v", r.VersionsPublished)
	}
}
