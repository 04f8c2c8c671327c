package questionnaire

import (
	"fmt"
	"sort"
	"strings"

	"github.com/riskframe/riskframe/pkg/scoring"
)

// Lookup returns the catalog question stored under key.
type Lookup func(key string) (Question, bool)

// LookupFrom builds a Lookup over an in-memory question list.
func LookupFrom(questions []Question) Lookup {
	byKey := make(map[string]Question, len(questions))
	for _, q := range questions {
		byKey[q.Key] = q
	}
	return func(key string) (Question, bool) {
		q, ok := byKey[key]
		return q, ok
	}
}

// Resolve merges bindings with their catalog questions and orders the result
// by Order ascending. Binding label and options win over the catalog.
//
// Bindings are validated when a version is published, so a key missing from
// the catalog or a repeated order here means stored data was corrupted, and
// is reported as scoring.ErrIntegrity. Questions deactivated after publish
// still resolve.
func Resolve(bindings []Binding, lookup Lookup) ([]ResolvedQuestion, error) {
	out := make([]ResolvedQuestion, 0, len(bindings))
	for _, b := range bindings {
		q, ok := lookup(b.Question)
		if !ok {
			return nil, fmt.Errorf("%w: bound question %q is missing from the catalog", scoring.ErrIntegrity, b.Question)
		}
		rq := ResolvedQuestion{
			Key:       q.Key,
			Label:     q.Label,
			Type:      q.Type,
			Options:   q.Options,
			Required:  b.Required,
			Order:     b.Order,
			Module:    q.Module,
			Alias:     b.Alias,
			Transform: b.Transform,
			Min:       q.Min,
			Max:       q.Max,
		}
		if b.Label != "" {
			rq.Label = b.Label
		}
		if len(b.Options) > 0 {
			rq.Options = b.Options
		}
		out = append(out, rq)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := 1; i < len(out); i++ {
		if out[i].Order == out[i-1].Order {
			return nil, fmt.Errorf("%w: questions %q and %q share order %d",
				scoring.ErrIntegrity, out[i-1].Key, out[i].Key, out[i].Order)
		}
	}
	return out, nil
}

// BindingError lists every problem found in a version's bindings.
type BindingError struct {
	Problems []string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("invalid question bindings: %s", strings.Join(e.Problems, "; "))
}

// ValidateBindings enforces the write-time binding rules: each question is
// bound once, exists in the catalog and is active, order indices are unique,
// and overrides fit the question type.
func ValidateBindings(bindings []Binding, lookup Lookup) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	keys := make(map[string]bool, len(bindings))
	orders := make(map[int]string, len(bindings))
	aliases := make(map[string]string)

	for i, b := range bindings {
		if b.Question == "" {
			addf("binding %d: question is required", i)
			continue
		}
		if keys[b.Question] {
			addf("question %q is bound twice", b.Question)
			continue
		}
		keys[b.Question] = true

		if other, dup := orders[b.Order]; dup {
			addf("questions %q and %q share order %d", other, b.Question, b.Order)
		} else {
			orders[b.Order] = b.Question
		}

		q, ok := lookup(b.Question)
		if !ok {
			addf("question %q does not exist", b.Question)
			continue
		}
		if !q.Active {
			addf("question %q is deactivated", b.Question)
		}
		if len(b.Options) > 0 && !q.Type.IsSelect() {
			addf("question %q: options override on a %s question", b.Question, q.Type)
		}
		switch b.Transform {
		case "":
		case TransformPercent:
			if q.Type != Numeric {
				addf("question %q: percent transform on a %s question", b.Question, q.Type)
			}
		default:
			addf("question %q: unknown transform %q", b.Question, b.Transform)
		}
		if b.Alias != "" {
			if other, dup := aliases[b.Alias]; dup {
				addf("alias %q used by %q and %q", b.Alias, other, b.Question)
			}
			aliases[b.Alias] = b.Question
		}
	}

	// An alias may not shadow another bound key.
	for alias, owner := range aliases {
		if keys[alias] {
			addf("alias %q of %q collides with a bound question", alias, owner)
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return &BindingError{Problems: problems}
	}
	return nil
}
