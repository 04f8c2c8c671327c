package scoring

// WeightEpsilon is the tolerance allowed when weights are checked to sum to 1.0.
const WeightEpsilon = 1e-6

// edgeTolerance is how far a decision may sit outside the band domain due to
// floating point accumulation before it is treated as an integrity failure.
const edgeTolerance = 1e-9

// Config is the declarative scoring configuration of a framework version.
// It is stored as a JSON document and authored as YAML.
type Config struct {
	Pillars  []Pillar      `json:"pillars" yaml:"pillars"`
	Formula  string        `json:"formula" yaml:"formula"`
	Bands    []Band        `json:"bands" yaml:"bands"`
	Warnings []WarningRule `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Pillar is a named sub-score aggregating weighted inputs.
type Pillar struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
	Inputs []Input `json:"inputs" yaml:"inputs"`
}

// Input scores one question's answer within a pillar.
type Input struct {
	Question string   `json:"question" yaml:"question"`
	Weight   float64  `json:"weight" yaml:"weight"`
	Rule     RuleSpec `json:"rule" yaml:"rule"`
}

// RuleType tags the scoring rule variant.
type RuleType string

const (
	RuleNumeric     RuleType = "numeric"
	RuleCategorical RuleType = "categorical"
)

// RuleSpec is the authored form of a scoring rule. Exactly one shape is valid
// per Type: numeric rules carry Expr or Steps (plus optional Clamp),
// categorical rules carry Table.
type RuleSpec struct {
	Type  RuleType           `json:"type" yaml:"type"`
	Expr  string             `json:"expr,omitempty" yaml:"expr,omitempty"`
	Steps []Step             `json:"steps,omitempty" yaml:"steps,omitempty"`
	Clamp *Range             `json:"clamp,omitempty" yaml:"clamp,omitempty"`
	Table map[string]float64 `json:"table,omitempty" yaml:"table,omitempty"`
}

// Step maps values up to and including UpTo to Score. A nil UpTo matches
// everything above the previous step and is only allowed last.
type Step struct {
	UpTo  *float64 `json:"up_to,omitempty" yaml:"up_to,omitempty"`
	Score float64  `json:"score" yaml:"score"`
}

// Range is a closed numeric interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Band maps a decision range to a risk category label.
// Bands are half-open [Min, Max) except the last, which includes Max.
type Band struct {
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Label string  `json:"label" yaml:"label"`
}

// WarningRule emits Message when the When predicate holds.
type WarningRule struct {
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	When    string `json:"when" yaml:"when"`
	Message string `json:"message" yaml:"message"`
}

// QuestionKind is the subset of question metadata the compiler checks rules
// against.
type QuestionKind string

const (
	QuestionSingleSelect QuestionKind = "single_select"
	QuestionMultiSelect  QuestionKind = "multi_select"
	QuestionNumeric      QuestionKind = "numeric"
	QuestionText         QuestionKind = "text"
)

// QuestionInfo describes a bound question for compile-time checks.
type QuestionInfo struct {
	Kind QuestionKind
	Min  *float64
	Max  *float64
}

// Catalog maps bound question keys to their metadata. A nil Catalog skips
// question checks.
type Catalog map[string]QuestionInfo
