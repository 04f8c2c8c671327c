package scoring

import (
	"fmt"
	"math"
	"sort"
)

// Rule scores a single answer. The set of implementations is closed:
// NumericTransform and CategoricalLookup.
type Rule interface {
	// Score returns the input score, or ok=false with the reason the value
	// could not be scored.
	Score(v Value) (score float64, reason UnscoredKind, ok bool)
	// Range is the closed interval every scored value falls in.
	Range() Range
	isRule()
}

// NumericTransform scores a numeric answer with a linear expression in
// `value` or an ordered step table, optionally clamped.
type NumericTransform struct {
	expr  *linearExpr
	steps []Step
	clamp *Range
	rng   Range
}

func (NumericTransform) isRule() {}

// Score implements Rule.
func (t *NumericTransform) Score(v Value) (float64, UnscoredKind, bool) {
	if v.Kind != KindNumber {
		return 0, UnscoredKindMismatch, false
	}
	var s float64
	if t.expr != nil {
		s = t.expr.eval(func(string) float64 { return v.Number })
	} else {
		for _, st := range t.steps {
			if st.UpTo == nil || v.Number <= *st.UpTo {
				s = st.Score
				break
			}
			// Past the last bounded step the final score applies.
			s = st.Score
		}
	}
	if t.clamp != nil {
		s = math.Max(t.clamp.Min, math.Min(t.clamp.Max, s))
	}
	return s, "", true
}

// Range implements Rule.
func (t *NumericTransform) Range() Range { return t.rng }

// CategoricalLookup scores an option string by exact match.
type CategoricalLookup struct {
	table map[string]float64
	rng   Range
}

func (CategoricalLookup) isRule() {}

// Score implements Rule. Values with no table entry score 0.
func (c *CategoricalLookup) Score(v Value) (float64, UnscoredKind, bool) {
	var key string
	switch {
	case v.Kind == KindText:
		key = v.Text
	case v.Kind == KindChoices && len(v.Choices) == 1:
		key = v.Choices[0]
	default:
		return 0, UnscoredKindMismatch, false
	}
	s, ok := c.table[key]
	if !ok {
		return 0, UnscoredNoTableEntry, false
	}
	return s, "", true
}

// Range implements Rule.
func (c *CategoricalLookup) Range() Range { return c.rng }

// compileRule turns an authored RuleSpec into a Rule. q may be nil when no
// catalog is available.
func compileRule(spec RuleSpec, q *QuestionInfo) (Rule, error) {
	switch spec.Type {
	case RuleNumeric:
		return compileNumeric(spec, q)
	case RuleCategorical:
		if spec.Expr != "" || len(spec.Steps) > 0 || spec.Clamp != nil {
			return nil, fmt.Errorf("categorical rule accepts only a table")
		}
		if len(spec.Table) == 0 {
			return nil, fmt.Errorf("categorical rule has an empty table")
		}
		if q != nil && q.Kind != QuestionSingleSelect && q.Kind != QuestionText {
			return nil, fmt.Errorf("categorical rule cannot score a %s question", q.Kind)
		}
		table := make(map[string]float64, len(spec.Table))
		keys := make([]string, 0, len(spec.Table))
		for k, v := range spec.Table {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("table entry %q is not finite", k)
			}
			table[k] = v
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rng := Range{Min: table[keys[0]], Max: table[keys[0]]}
		for _, k := range keys[1:] {
			rng.Min = math.Min(rng.Min, table[k])
			rng.Max = math.Max(rng.Max, table[k])
		}
		return &CategoricalLookup{table: table, rng: rng}, nil
	case "":
		return nil, fmt.Errorf("rule type is required")
	default:
		return nil, fmt.Errorf("unsupported rule type %q", spec.Type)
	}
}

func compileNumeric(spec RuleSpec, q *QuestionInfo) (Rule, error) {
	if len(spec.Table) > 0 {
		return nil, fmt.Errorf("numeric rule cannot carry a table")
	}
	if q != nil && q.Kind != QuestionNumeric {
		return nil, fmt.Errorf("numeric rule cannot score a %s question", q.Kind)
	}
	if spec.Clamp != nil && spec.Clamp.Min > spec.Clamp.Max {
		return nil, fmt.Errorf("clamp min %.4g exceeds max %.4g", spec.Clamp.Min, spec.Clamp.Max)
	}

	t := &NumericTransform{clamp: spec.Clamp}
	switch {
	case spec.Expr != "" && len(spec.Steps) > 0:
		return nil, fmt.Errorf("numeric rule takes expr or steps, not both")
	case spec.Expr != "":
		e, err := parseLinearExpr(spec.Expr, func(name string) bool { return name == "value" })
		if err != nil {
			return nil, fmt.Errorf("expr %q: %w", spec.Expr, err)
		}
		t.expr = &e
		rng, err := exprRange(e, q, spec.Clamp)
		if err != nil {
			return nil, err
		}
		t.rng = rng
	case len(spec.Steps) > 0:
		for i, st := range spec.Steps {
			if st.UpTo == nil && i != len(spec.Steps)-1 {
				return nil, fmt.Errorf("step %d has no up_to but is not last", i)
			}
			if i > 0 && st.UpTo != nil && *st.UpTo <= *spec.Steps[i-1].UpTo {
				return nil, fmt.Errorf("step %d up_to %.4g is not ascending", i, *st.UpTo)
			}
		}
		t.steps = append([]Step(nil), spec.Steps...)
		rng := Range{Min: spec.Steps[0].Score, Max: spec.Steps[0].Score}
		for _, st := range spec.Steps[1:] {
			rng.Min = math.Min(rng.Min, st.Score)
			rng.Max = math.Max(rng.Max, st.Score)
		}
		t.rng = clampRange(rng, spec.Clamp)
	default:
		return nil, fmt.Errorf("numeric rule needs expr or steps")
	}
	return t, nil
}

// exprRange derives the reachable range of a linear transform from the
// question bounds and clamp.
func exprRange(e linearExpr, q *QuestionInfo, clamp *Range) (Range, error) {
	if len(e.terms) == 0 {
		return clampRange(Range{Min: e.constant, Max: e.constant}, clamp), nil
	}
	if q != nil && q.Min != nil && q.Max != nil {
		lookupMin := func(string) float64 { return *q.Min }
		lookupMax := func(string) float64 { return *q.Max }
		a, b := e.eval(lookupMin), e.eval(lookupMax)
		return clampRange(Range{Min: math.Min(a, b), Max: math.Max(a, b)}, clamp), nil
	}
	if clamp != nil {
		return *clamp, nil
	}
	return Range{}, fmt.Errorf("transform range is unbounded: declare question bounds or a clamp")
}

func clampRange(r Range, clamp *Range) Range {
	if clamp == nil {
		return r
	}
	c := func(x float64) float64 { return math.Max(clamp.Min, math.Min(clamp.Max, x)) }
	return Range{Min: c(r.Min), Max: c(r.Max)}
}
