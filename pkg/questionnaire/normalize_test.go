package questionnaire

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/riskframe/riskframe/pkg/scoring"
)

func resolvedDefaults(t *testing.T) []ResolvedQuestion {
	t.Helper()
	rq, err := Resolve(ThreePillarBindings(), LookupFrom(ThreePillarQuestions()))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	return rq
}

func validRaw() map[string]any {
	return map[string]any{
		"age":                     "25-35",
		"emi_ratio":               15.0,
		"liquidity_withdrawal_2y": "5%",
		"income_security":         "Very secure",
		"market_knowledge":        "High",
		"drawdown_reaction":       "Buy more",
		"gain_loss_tradeoff":      "Loss25Gain50",
		"goal_required_return":    json.Number("12"),
		"investment_goals":        []any{"Retirement", "Home", "Retirement"},
		"favourite_colour":        "blue",
	}
}

func TestNormalizeValidAnswers(t *testing.T) {
	answers, err := Normalize(resolvedDefaults(t), validRaw())
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}

	if _, ok := answers["favourite_colour"]; ok {
		t.Error("expected unknown keys to be dropped")
	}
	if got := answers["liquidity_withdrawal_2y"]; got.Kind != scoring.KindNumber || got.Number != 5 {
		t.Errorf("expected percent answer 5, got %+v", got)
	}
	if got := answers["goal_required_return"]; got.Number != 12 {
		t.Errorf("expected 12, got %+v", got)
	}
	if got := answers["age"]; got.Kind != scoring.KindText || got.Text != "25-35" {
		t.Errorf("expected text 25-35, got %+v", got)
	}
	goals := answers["investment_goals"]
	if goals.Kind != scoring.KindChoices || len(goals.Choices) != 2 {
		t.Errorf("expected two deduplicated choices, got %+v", goals)
	}
}

func TestNormalizeScoresReferenceScenario(t *testing.T) {
	questions := resolvedDefaults(t)
	answers, err := Normalize(questions, validRaw())
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	engine, err := scoring.Compile(scoring.ThreePillarConfig(), Catalog(questions))
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	result, err := engine.Score(answers)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if result.Bucket != "Aggressive" {
		t.Errorf("expected Aggressive, got %s", result.Bucket)
	}
	if math.Abs(result.PillarScores["capacity"]-83.25) > 1e-9 {
		t.Errorf("expected capacity 83.25, got %f", result.PillarScores["capacity"])
	}
}

func TestNormalizeAlias(t *testing.T) {
	raw := validRaw()
	delete(raw, "age")
	raw["age_band"] = "51+"

	answers, err := Normalize(resolvedDefaults(t), raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if answers["age"].Text != "51+" {
		t.Errorf("expected alias value 51+, got %+v", answers["age"])
	}

	// Primary key wins over the alias.
	raw["age"] = "Under 25"
	answers, err = Normalize(resolvedDefaults(t), raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if answers["age"].Text != "Under 25" {
		t.Errorf("expected primary value, got %+v", answers["age"])
	}
}

func TestNormalizeCollectsProblems(t *testing.T) {
	raw := validRaw()
	delete(raw, "income_security")
	raw["market_knowledge"] = "Expert"
	raw["emi_ratio"] = "fifteen"
	raw["goal_required_return"] = 140.0
	raw["drawdown_reaction"] = "   "
	raw["investment_goals"] = []any{"Retirement", "Yacht"}

	_, err := Normalize(resolvedDefaults(t), raw)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}

	want := map[string]ProblemCode{
		"income_security":      MissingRequiredAnswer,
		"market_knowledge":     InvalidOption,
		"emi_ratio":            InvalidNumber,
		"goal_required_return": InvalidNumber,
		"drawdown_reaction":    MissingRequiredAnswer,
		"investment_goals":     InvalidOption,
	}
	if len(verr.Problems) != len(want) {
		t.Fatalf("expected %d problems, got %+v", len(want), verr.Problems)
	}
	for _, p := range verr.Problems {
		if want[p.Key] != p.Code {
			t.Errorf("%s: expected %s, got %s", p.Key, want[p.Key], p.Code)
		}
	}
}

func TestNormalizeNumbers(t *testing.T) {
	q := ResolvedQuestion{Key: "n", Type: Numeric, Required: true}
	pct := q
	pct.Transform = TransformPercent

	tests := []struct {
		name    string
		q       ResolvedQuestion
		raw     any
		want    float64
		wantErr bool
	}{
		{name: "float", q: q, raw: 3.5, want: 3.5},
		{name: "int", q: q, raw: 7, want: 7},
		{name: "string", q: q, raw: " 42 ", want: 42},
		{name: "percent", q: pct, raw: "12.5 %", want: 12.5},
		{name: "percent without hint", q: q, raw: "12%", wantErr: true},
		{name: "nan", q: q, raw: "NaN", wantErr: true},
		{name: "inf", q: q, raw: math.Inf(1), wantErr: true},
		{name: "bool", q: q, raw: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers, err := Normalize([]ResolvedQuestion{tt.q}, map[string]any{"n": tt.raw})
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Problems[0].Code != InvalidNumber {
					t.Errorf("expected INVALID_NUMBER, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error: %v", err)
			}
			if answers["n"].Number != tt.want {
				t.Errorf("expected %v, got %v", tt.want, answers["n"].Number)
			}
		})
	}
}

func TestNormalizeOptionalAnswers(t *testing.T) {
	questions := []ResolvedQuestion{
		{Key: "note", Type: Text},
		{Key: "goals", Type: MultiSelect, Options: []string{"A", "B"}},
	}
	answers, err := Normalize(questions, map[string]any{"note": "", "goals": []any{}})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if len(answers) != 0 {
		t.Errorf("expected empty optional answers to be omitted, got %v", answers)
	}

	answers, err = Normalize(questions, map[string]any{"note": " hello ", "goals": "B"})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if answers["note"].Text != "hello" {
		t.Errorf("expected trimmed text, got %q", answers["note"].Text)
	}
	if len(answers["goals"].Choices) != 1 || answers["goals"].Choices[0] != "B" {
		t.Errorf("expected single choice B, got %v", answers["goals"].Choices)
	}
}

func TestNormalizeIsPure(t *testing.T) {
	raw := validRaw()
	before, _ := json.Marshal(raw)
	if _, err := Normalize(resolvedDefaults(t), raw); err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	after, _ := json.Marshal(raw)
	if string(before) != string(after) {
		t.Error("expected raw answers to be left untouched")
	}
}
