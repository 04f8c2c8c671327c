package questionnaire

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/riskframe/riskframe/pkg/scoring"
)

// ProblemCode classifies a rejected answer.
type ProblemCode string

const (
	MissingRequiredAnswer ProblemCode = "MISSING_REQUIRED_ANSWER"
	InvalidOption         ProblemCode = "INVALID_OPTION"
	InvalidNumber         ProblemCode = "INVALID_NUMBER"
	InvalidValue          ProblemCode = "INVALID_VALUE"
)

// Problem is one rejected answer.
type Problem struct {
	Code    ProblemCode `json:"code"`
	Key     string      `json:"key"`
	Value   string      `json:"value,omitempty"`
	Message string      `json:"message"`
}

// ValidationError carries every problem found in one answer set.
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid answers: " + e.Problems[0].Message
	}
	return fmt.Sprintf("invalid answers: %d problems, first: %s", len(e.Problems), e.Problems[0].Message)
}

// Normalize turns raw answers into typed values for the scoring engine.
// Keys not bound to the questions are dropped. An alias is consulted only
// when the primary key is absent. Every problem is collected before
// returning a *ValidationError.
func Normalize(questions []ResolvedQuestion, raw map[string]any) (scoring.Answers, error) {
	answers := make(scoring.Answers, len(questions))
	verr := &ValidationError{}
	reject := func(code ProblemCode, q ResolvedQuestion, v any, format string, args ...any) {
		p := Problem{Code: code, Key: q.Key, Message: fmt.Sprintf(format, args...)}
		if v != nil {
			p.Value = display(v)
		}
		verr.Problems = append(verr.Problems, p)
	}

	for _, q := range questions {
		v, ok := raw[q.Key]
		if !ok && q.Alias != "" {
			v, ok = raw[q.Alias]
		}
		if !ok || isEmpty(v) {
			if q.Required {
				reject(MissingRequiredAnswer, q, nil, "%s: an answer is required", q.Key)
			}
			continue
		}

		switch q.Type {
		case SingleSelect:
			s, ok := scalarString(v)
			if !ok || !slices.Contains(q.Options, s) {
				reject(InvalidOption, q, v, "%s: %s is not one of the allowed options", q.Key, display(v))
				continue
			}
			answers[q.Key] = scoring.Text(s)

		case MultiSelect:
			choices, bad, ok := choiceList(v, q.Options)
			if !ok {
				reject(InvalidOption, q, v, "%s: %s is not one of the allowed options", q.Key, bad)
				continue
			}
			if len(choices) == 0 {
				if q.Required {
					reject(MissingRequiredAnswer, q, nil, "%s: an answer is required", q.Key)
				}
				continue
			}
			answers[q.Key] = scoring.Choices(choices...)

		case Numeric:
			n, err := parseNumber(v, q.Transform == TransformPercent)
			if err != nil {
				reject(InvalidNumber, q, v, "%s: %v", q.Key, err)
				continue
			}
			if q.Min != nil && n < *q.Min || q.Max != nil && n > *q.Max {
				reject(InvalidNumber, q, v, "%s: %g is outside %s", q.Key, n, bounds(q.Min, q.Max))
				continue
			}
			answers[q.Key] = scoring.Number(n)

		case Text:
			s, ok := scalarString(v)
			if !ok {
				reject(InvalidValue, q, v, "%s: expected a text answer", q.Key)
				continue
			}
			answers[q.Key] = scoring.Text(s)

		default:
			reject(InvalidValue, q, v, "%s: unsupported question type %q", q.Key, q.Type)
		}
	}

	if len(verr.Problems) > 0 {
		return nil, verr
	}
	return answers, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

// scalarString renders strings and numbers as option strings.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// choiceList validates a multi-select answer. A lone string counts as one
// choice. Duplicates collapse, keeping first occurrence.
func choiceList(v any, options []string) ([]string, string, bool) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	default:
		items = []any{t}
	}

	var out []string
	for _, item := range items {
		s, ok := scalarString(item)
		if !ok || !slices.Contains(options, s) {
			return nil, display(item), false
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, "", true
}

func parseNumber(v any, percent bool) (float64, error) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t.String())
		}
		n = f
	case string:
		s := strings.TrimSpace(t)
		if percent {
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		n = f
	default:
		return 0, fmt.Errorf("%s is not a number", display(v))
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%s is not a finite number", display(v))
	}
	return n, nil
}

func bounds(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("[%g, %g]", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("[%g, ∞)", *lo)
	default:
		return fmt.Sprintf("(-∞, %g]", *hi)
	}
}

func display(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(v)
}
