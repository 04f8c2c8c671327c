package scoring

import (
	"errors"
	"fmt"
	"math"
)

// DecisionVar is the name warning predicates use for the decision scalar.
const DecisionVar = "decision"

// Version identifies the scoring semantics. Bump it whenever a change could
// alter the Result for a stored Config and Answers.
const Version = "1.0.0"

// ErrIntegrity marks failures that mean a configuration slipped past
// publish-time validation. Callers must treat it as fatal.
var ErrIntegrity = errors.New("scoring engine integrity failure")

// Engine evaluates answers against one compiled Config. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	config      Config
	pillars     []compiledPillar
	pillarIndex map[string]int
	formula     formula
	bands       []Band
	warnings    []compiledWarning
}

// Config returns the configuration the engine was compiled from.
func (e *Engine) Config() Config {
	return e.config
}

// Pillars returns pillar names in declaration order.
func (e *Engine) Pillars() []string {
	names := make([]string, len(e.pillars))
	for i, p := range e.pillars {
		names[i] = p.name
	}
	return names
}

// Score evaluates answers and produces a Result.
func (e *Engine) Score(answers Answers) (*Result, error) {
	result := &Result{
		PillarScores: make(map[string]float64, len(e.pillars)),
		Warnings:     []string{},
	}

	// Pillars, in declaration order
	for _, p := range e.pillars {
		var total float64
		for _, in := range p.inputs {
			v, ok := answers[in.question]
			if !ok {
				result.Unscored = append(result.Unscored, UnscoredInput{
					Pillar: p.name, Question: in.question, Reason: UnscoredMissing,
				})
				continue
			}
			s, reason, ok := in.rule.Score(v)
			if !ok {
				result.Unscored = append(result.Unscored, UnscoredInput{
					Pillar: p.name, Question: in.question, Value: displayValue(v), Reason: reason,
				})
				continue
			}
			total += in.weight * s
		}
		result.PillarScores[p.name] = total
	}

	score := func(name string) float64 { return result.PillarScores[name] }
	weight := func(name string) float64 { return e.pillars[e.pillarIndex[name]].weight }
	for _, name := range e.formula.pillars {
		if _, ok := e.pillarIndex[name]; !ok {
			return nil, fmt.Errorf("%w: formula pillar %q missing from configuration", ErrIntegrity, name)
		}
	}
	result.Decision = e.formula.eval(score, weight)

	bucket, decision, err := e.bucket(result.Decision)
	if err != nil {
		return nil, err
	}
	result.Decision = decision
	result.Bucket = bucket

	lookup := func(name string) float64 {
		if name == DecisionVar {
			return result.Decision
		}
		return result.PillarScores[name]
	}
	for _, w := range e.warnings {
		if w.pred.holds(lookup) {
			result.Warnings = append(result.Warnings, w.message)
		}
	}

	return result, nil
}

// bucket finds the band containing d. Values within edgeTolerance of the
// domain edges snap to the edge.
func (e *Engine) bucket(d float64) (string, float64, error) {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return "", d, fmt.Errorf("%w: decision %v is not finite", ErrIntegrity, d)
	}
	lo, hi := e.bands[0].Min, e.bands[len(e.bands)-1].Max
	if d < lo && d >= lo-edgeTolerance {
		d = lo
	}
	if d > hi && d <= hi+edgeTolerance {
		d = hi
	}
	last := len(e.bands) - 1
	for i, b := range e.bands {
		if d >= b.Min && (d < b.Max || i == last && d == b.Max) {
			return b.Label, d, nil
		}
	}
	return "", d, fmt.Errorf("%w: decision %.6f outside all bands [%.4g, %.4g]", ErrIntegrity, d, lo, hi)
}

// BucketFor maps a decision scalar to its band label.
func (e *Engine) BucketFor(d float64) (string, error) {
	label, _, err := e.bucket(d)
	return label, err
}

// Domain returns the closed interval covered by the bands.
func (e *Engine) Domain() Range {
	return Range{Min: e.bands[0].Min, Max: e.bands[len(e.bands)-1].Max}
}

// decisionRange computes the reachable decision interval. Every input may
// contribute 0 when unscored, so 0 is always part of an input's range.
func (e *Engine) decisionRange() Range {
	ranges := make(map[string]Range, len(e.pillars))
	for _, p := range e.pillars {
		var r Range
		for _, in := range p.inputs {
			ir := in.rule.Range()
			r.Min += in.weight * math.Min(0, ir.Min)
			r.Max += in.weight * math.Max(0, ir.Max)
		}
		ranges[p.name] = r
	}
	weight := func(name string) float64 { return e.pillars[e.pillarIndex[name]].weight }
	return e.formula.evalRange(ranges, weight)
}

func displayValue(v Value) string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindChoices:
		return fmt.Sprintf("%v", v.Choices)
	default:
		return v.Text
	}
}
