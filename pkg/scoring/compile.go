package scoring

import (
	"fmt"
	"math"
	"strings"
)

// ConfigError lists every problem that makes a Config un-publishable.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid scoring configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ConfigError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

type compiledInput struct {
	question string
	weight   float64
	rule     Rule
}

type compiledPillar struct {
	name   string
	weight float64
	inputs []compiledInput
}

type compiledWarning struct {
	pred    predicate
	message string
}

// Compile validates cfg and returns an Engine ready to score answers.
// All publish-time checks live here; an Engine never sees an invalid Config.
func Compile(cfg Config, catalog Catalog) (*Engine, error) {
	cerr := &ConfigError{}
	e := &Engine{pillarIndex: make(map[string]int)}

	if len(cfg.Pillars) == 0 {
		cerr.addf("at least one pillar is required")
	}

	for _, p := range cfg.Pillars {
		if p.Name == "" {
			cerr.addf("pillar name is required")
			continue
		}
		if p.Name == DecisionVar {
			cerr.addf("pillar name %q is reserved", DecisionVar)
			continue
		}
		if _, dup := e.pillarIndex[p.Name]; dup {
			cerr.addf("duplicate pillar %q", p.Name)
			continue
		}
		if p.Weight < 0 || math.IsNaN(p.Weight) {
			cerr.addf("pillar %q: weight must be non-negative", p.Name)
		}
		cp := compiledPillar{name: p.Name, weight: p.Weight}
		if len(p.Inputs) == 0 {
			cerr.addf("pillar %q: at least one input is required", p.Name)
		}
		var inputSum float64
		seen := make(map[string]bool)
		for _, in := range p.Inputs {
			if in.Question == "" {
				cerr.addf("pillar %q: input question is required", p.Name)
				continue
			}
			if seen[in.Question] {
				cerr.addf("pillar %q: question %q used twice", p.Name, in.Question)
				continue
			}
			seen[in.Question] = true
			if in.Weight < 0 || math.IsNaN(in.Weight) {
				cerr.addf("pillar %q: input %q weight must be non-negative", p.Name, in.Question)
			}
			inputSum += in.Weight

			var q *QuestionInfo
			if catalog != nil {
				info, ok := catalog[in.Question]
				if !ok {
					cerr.addf("pillar %q: input %q is not bound to the version", p.Name, in.Question)
					continue
				}
				q = &info
			}
			rule, err := compileRule(in.Rule, q)
			if err != nil {
				cerr.addf("pillar %q: input %q: %v", p.Name, in.Question, err)
				continue
			}
			cp.inputs = append(cp.inputs, compiledInput{question: in.Question, weight: in.Weight, rule: rule})
		}
		if len(p.Inputs) > 0 && math.Abs(inputSum-1.0) > WeightEpsilon {
			cerr.addf("pillar %q: input weights sum to %.6f, must sum to 1.0", p.Name, inputSum)
		}
		e.pillarIndex[p.Name] = len(e.pillars)
		e.pillars = append(e.pillars, cp)
	}

	f, err := parseFormula(cfg.Formula)
	if err != nil {
		cerr.addf("formula %q: %v", cfg.Formula, err)
	} else {
		var weightSum float64
		for _, name := range f.pillars {
			idx, ok := e.pillarIndex[name]
			if !ok {
				cerr.addf("formula references unknown pillar %q", name)
				continue
			}
			weightSum += e.pillars[idx].weight
		}
		if math.Abs(weightSum-1.0) > WeightEpsilon {
			cerr.addf("pillar weights used by the formula sum to %.6f, must sum to 1.0", weightSum)
		}
		e.formula = f
	}

	validateBands(cfg.Bands, cerr)
	e.bands = append([]Band(nil), cfg.Bands...)

	allowed := func(name string) bool {
		if name == DecisionVar {
			return true
		}
		_, ok := e.pillarIndex[name]
		return ok
	}
	for i, w := range cfg.Warnings {
		if w.Message == "" {
			cerr.addf("warning %d: message is required", i)
		}
		pred, err := parsePredicate(w.When, allowed)
		if err != nil {
			cerr.addf("warning %d %q: %v", i, w.When, err)
			continue
		}
		e.warnings = append(e.warnings, compiledWarning{pred: pred, message: w.Message})
	}

	if len(cerr.Problems) > 0 {
		return nil, cerr
	}

	// Range analysis: every reachable decision must land in a band.
	dr := e.decisionRange()
	lo, hi := e.bands[0].Min, e.bands[len(e.bands)-1].Max
	if dr.Min < lo-edgeTolerance || dr.Max > hi+edgeTolerance {
		cerr.addf("decision can reach [%.4g, %.4g] but bands cover [%.4g, %.4g]", dr.Min, dr.Max, lo, hi)
		return nil, cerr
	}

	e.config = cfg
	return e, nil
}

// validateBands checks that bands are ordered and partition their domain.
func validateBands(bands []Band, cerr *ConfigError) {
	if len(bands) == 0 {
		cerr.addf("at least one band is required")
		return
	}
	labels := make(map[string]bool)
	for i, b := range bands {
		if b.Label == "" {
			cerr.addf("band %d: label is required", i)
		} else if labels[b.Label] {
			cerr.addf("band %d: duplicate label %q", i, b.Label)
		}
		labels[b.Label] = true
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
			cerr.addf("band %d: bounds must be finite", i)
			continue
		}
		if b.Min >= b.Max {
			cerr.addf("band %d %q: min %.4g must be below max %.4g", i, b.Label, b.Min, b.Max)
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1]
		switch {
		case b.Min > prev.Max:
			cerr.addf("gap between band %q (max %.4g) and %q (min %.4g)", prev.Label, prev.Max, b.Label, b.Min)
		case b.Min < prev.Max:
			cerr.addf("band %q (min %.4g) overlaps %q (max %.4g)", b.Label, b.Min, prev.Label, prev.Max)
		}
	}
}
