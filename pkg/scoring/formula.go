package scoring

import (
	"fmt"
	"strings"
)

// FormulaKind is the closed set of decision combinators.
type FormulaKind string

const (
	FormulaMin         FormulaKind = "min"
	FormulaMax         FormulaKind = "max"
	FormulaWeightedSum FormulaKind = "weighted_sum"
	FormulaPillar      FormulaKind = "pillar"
)

// formula combines pillar scores into the decision scalar.
type formula struct {
	kind    FormulaKind
	pillars []string
}

// parseFormula accepts "min(a, b)", "max(a, b)", "weighted_sum(a, b)" or a
// bare pillar name.
func parseFormula(src string) (formula, error) {
	p, err := newParser(src)
	if err != nil {
		return formula{}, err
	}
	head := p.next()
	if head.kind != tokIdent {
		return formula{}, fmt.Errorf("expected combinator or pillar name at %d", head.pos)
	}
	if p.peek().kind == tokEOF {
		return formula{kind: FormulaPillar, pillars: []string{head.text}}, nil
	}

	var kind FormulaKind
	switch strings.ToLower(head.text) {
	case "min":
		kind = FormulaMin
	case "max":
		kind = FormulaMax
	case "weighted_sum", "weightedsum":
		kind = FormulaWeightedSum
	default:
		return formula{}, fmt.Errorf("unsupported combinator %q", head.text)
	}

	if t := p.next(); t.kind != tokLParen {
		return formula{}, fmt.Errorf("expected ( after %s", head.text)
	}
	var pillars []string
	seen := make(map[string]bool)
	for {
		t := p.next()
		if t.kind != tokIdent {
			return formula{}, fmt.Errorf("expected pillar name at %d", t.pos)
		}
		if seen[t.text] {
			return formula{}, fmt.Errorf("pillar %q repeated in formula", t.text)
		}
		seen[t.text] = true
		pillars = append(pillars, t.text)

		sep := p.next()
		if sep.kind == tokRParen {
			break
		}
		if sep.kind != tokComma {
			return formula{}, fmt.Errorf("expected , or ) at %d", sep.pos)
		}
	}
	if err := p.expectEOF(); err != nil {
		return formula{}, err
	}
	return formula{kind: kind, pillars: pillars}, nil
}

func (f formula) eval(score func(string) float64, weight func(string) float64) float64 {
	switch f.kind {
	case FormulaMin, FormulaMax:
		v := score(f.pillars[0])
		for _, name := range f.pillars[1:] {
			s := score(name)
			if f.kind == FormulaMin && s < v || f.kind == FormulaMax && s > v {
				v = s
			}
		}
		return v
	case FormulaWeightedSum:
		var v float64
		for _, name := range f.pillars {
			v += weight(name) * score(name)
		}
		return v
	default:
		return score(f.pillars[0])
	}
}

// evalRange returns the reachable decision range given per-pillar ranges.
func (f formula) evalRange(ranges map[string]Range, weight func(string) float64) Range {
	switch f.kind {
	case FormulaMin, FormulaMax:
		out := ranges[f.pillars[0]]
		for _, name := range f.pillars[1:] {
			r := ranges[name]
			if f.kind == FormulaMin {
				out.Min = min(out.Min, r.Min)
				out.Max = min(out.Max, r.Max)
			} else {
				out.Min = max(out.Min, r.Min)
				out.Max = max(out.Max, r.Max)
			}
		}
		return out
	case FormulaWeightedSum:
		var out Range
		for _, name := range f.pillars {
			r := ranges[name]
			out.Min += weight(name) * r.Min
			out.Max += weight(name) * r.Max
		}
		return out
	default:
		return ranges[f.pillars[0]]
	}
}
