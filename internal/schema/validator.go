// Package schema checks the structure of framework version documents and
// catalog questions against embedded CUE definitions before any semantic
// validation runs.
package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

//go:embed schemas/*.cue
var schemaFS embed.FS

// Error lists the schema violations of one document.
type Error struct {
	Kind     string
	Problems []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s does not match schema: %s", e.Kind, strings.Join(e.Problems, "; "))
}

// Validator holds the compiled schema. A cue.Context is not safe for
// concurrent use, so validations are serialized.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	content, err := schemaFS.ReadFile("schemas/framework.cue")
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(content, cue.Filename("framework.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

type versionDoc struct {
	Config   scoring.Config          `json:"config"`
	Bindings []questionnaire.Binding `json:"bindings"`
}

// ValidateVersion checks a scoring configuration and its bindings.
func (v *Validator) ValidateVersion(cfg scoring.Config, bindings []questionnaire.Binding) error {
	if bindings == nil {
		bindings = []questionnaire.Binding{}
	}
	return v.validate("#Version", "framework version", versionDoc{Config: cfg, Bindings: bindings})
}

// ValidateQuestion checks a catalog question definition.
func (v *Validator) ValidateQuestion(q questionnaire.Question) error {
	doc := map[string]any{
		"key":   q.Key,
		"label": q.Label,
		"type":  string(q.Type),
	}
	if len(q.Options) > 0 {
		doc["options"] = q.Options
	}
	if q.Module != "" {
		doc["module"] = q.Module
	}
	if q.Min != nil {
		doc["min"] = *q.Min
	}
	if q.Max != nil {
		doc["max"] = *q.Max
	}
	return v.validate("#Question", fmt.Sprintf("question %q", q.Key), doc)
}

func (v *Validator) validate(def, kind string, doc any) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	schema := v.schema.LookupPath(cue.ParsePath(def))
	if !schema.Exists() {
		return fmt.Errorf("schema definition %s not found", def)
	}

	unified := schema.Unify(data)
	if err := unified.Err(); err != nil {
		return &Error{Kind: kind, Problems: problems(err)}
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &Error{Kind: kind, Problems: problems(err)}
	}
	return nil
}

func problems(err error) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range cueerrors.Errors(err) {
		msg := e.Error()
		if seen[msg] {
			continue
		}
		seen[msg] = true
		out = append(out, msg)
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	sort.Strings(out)
	return out
}
