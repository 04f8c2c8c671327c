// Package questionnaire defines catalog questions, their per-version bindings
// and the two pure steps that sit in front of the scoring engine: resolving a
// version's bindings into an ordered question list, and normalizing raw
// answers against that list.
package questionnaire

import (
	"time"

	"github.com/riskframe/riskframe/pkg/scoring"
)

// InputType is how a question is answered.
type InputType string

const (
	SingleSelect InputType = "single_select"
	MultiSelect  InputType = "multi_select"
	Numeric      InputType = "numeric"
	Text         InputType = "text"
)

// Valid reports whether t is a known input type.
func (t InputType) Valid() bool {
	switch t {
	case SingleSelect, MultiSelect, Numeric, Text:
		return true
	}
	return false
}

// IsSelect reports whether answers must come from an option set.
func (t InputType) IsSelect() bool {
	return t == SingleSelect || t == MultiSelect
}

// Question is a catalog entry. Once a published version binds it, its
// definition is frozen; it may only be deactivated.
type Question struct {
	Key       string    `json:"key" yaml:"key"`
	Label     string    `json:"label" yaml:"label"`
	Type      InputType `json:"type" yaml:"type"`
	Options   []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Module    string    `json:"module,omitempty" yaml:"module,omitempty"`
	Min       *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Active    bool      `json:"active" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Transform hints accepted on a binding.
const (
	// TransformPercent lets numeric answers carry a trailing "%".
	TransformPercent = "percent"
)

// Binding attaches a catalog question to a framework version.
type Binding struct {
	Question  string   `json:"question" yaml:"question"`
	Required  bool     `json:"required" yaml:"required"`
	Order     int      `json:"order" yaml:"order"`
	Label     string   `json:"label,omitempty" yaml:"label,omitempty"`
	Options   []string `json:"options,omitempty" yaml:"options,omitempty"`
	Alias     string   `json:"alias,omitempty" yaml:"alias,omitempty"`
	Transform string   `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// ResolvedQuestion is a catalog question merged with its binding, as shown
// to a respondent and frozen into submissions.
type ResolvedQuestion struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Type      InputType `json:"type"`
	Options   []string  `json:"options,omitempty"`
	Required  bool      `json:"required"`
	Order     int       `json:"order"`
	Module    string    `json:"module,omitempty"`
	Alias     string    `json:"alias,omitempty"`
	Transform string    `json:"transform,omitempty"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
}

// Catalog converts resolved questions into the metadata the scoring compiler
// checks rules against.
func Catalog(questions []ResolvedQuestion) scoring.Catalog {
	c := make(scoring.Catalog, len(questions))
	for _, q := range questions {
		c[q.Key] = scoring.QuestionInfo{
			Kind: scoring.QuestionKind(q.Type),
			Min:  q.Min,
			Max:  q.Max,
		}
	}
	return c
}
