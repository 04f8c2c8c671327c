// Package scoring implements the declarative risk scoring engine.
// A Config is compiled once at publish time into an Engine, which turns typed
// answers into pillar scores, a decision scalar, a bucket and warnings.
package scoring

// Result is the complete output of scoring one set of answers.
// Immutable once computed.
type Result struct {
	PillarScores map[string]float64 `json:"pillar_scores"`
	Decision     float64            `json:"decision"`
	Bucket       string             `json:"bucket"`
	Warnings     []string           `json:"warnings"`
	Unscored     []UnscoredInput    `json:"unscored,omitempty"`
}

// UnscoredInput records an input that contributed 0 because its answer could
// not be scored. These are never errors.
type UnscoredInput struct {
	Pillar   string       `json:"pillar"`
	Question string       `json:"question"`
	Value    string       `json:"value,omitempty"`
	Reason   UnscoredKind `json:"reason"`
}

// UnscoredKind classifies why an input scored 0.
type UnscoredKind string

const (
	UnscoredMissing      UnscoredKind = "MISSING"        // optional question left unanswered
	UnscoredNoTableEntry UnscoredKind = "NO_TABLE_ENTRY" // categorical value absent from the lookup table
	UnscoredKindMismatch UnscoredKind = "KIND_MISMATCH"  // answer kind does not fit the rule
)

// ValueKind is the type tag of a normalized answer.
type ValueKind string

const (
	KindNumber  ValueKind = "number"
	KindText    ValueKind = "text"
	KindChoices ValueKind = "choices"
)

// Value is a typed answer produced by the normalizer.
type Value struct {
	Kind    ValueKind `json:"kind"`
	Number  float64   `json:"number,omitempty"`
	Text    string    `json:"text,omitempty"`
	Choices []string  `json:"choices,omitempty"`
}

// Number returns a numeric Value.
func Number(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// Text returns a text Value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Choices returns a multi-choice Value.
func Choices(c ...string) Value { return Value{Kind: KindChoices, Choices: c} }

// Answers maps question keys to typed values.
type Answers map[string]Value

// Equal reports whether two results are bit-identical.
func (r *Result) Equal(o *Result) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Decision != o.Decision || r.Bucket != o.Bucket {
		return false
	}
	if len(r.PillarScores) != len(o.PillarScores) {
		return false
	}
	for k, v := range r.PillarScores {
		ov, ok := o.PillarScores[k]
		if !ok || ov != v {
			return false
		}
	}
	if len(r.Warnings) != len(o.Warnings) {
		return false
	}
	for i := range r.Warnings {
		if r.Warnings[i] != o.Warnings[i] {
			return false
		}
	}
	if len(r.Unscored) != len(o.Unscored) {
		return false
	}
	for i := range r.Unscored {
		if r.Unscored[i] != o.Unscored[i] {
			return false
		}
	}
	return true
}
