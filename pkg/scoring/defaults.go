package scoring

// ThreePillarConfig returns the reference capacity / tolerance / need
// configuration. The decision is min(capacity, tolerance); need only drives
// warnings.
func ThreePillarConfig() Config {
	return Config{
		Pillars: []Pillar{
			{
				Name:   "capacity",
				Weight: 0.5,
				Inputs: []Input{
					{Question: "age", Weight: 0.25, Rule: RuleSpec{Type: RuleCategorical, Table: map[string]float64{
						"Under 25": 90,
						"25-35":    75,
						"36-50":    50,
						"51+":      25,
					}}},
					{Question: "emi_ratio", Weight: 0.30, Rule: RuleSpec{Type: RuleNumeric, Expr: "100 - 2 * value", Clamp: &Range{Min: 0, Max: 100}}},
					{Question: "liquidity_withdrawal_2y", Weight: 0.30, Rule: RuleSpec{Type: RuleNumeric, Expr: "100 - value", Clamp: &Range{Min: 0, Max: 100}}},
					{Question: "income_security", Weight: 0.15, Rule: RuleSpec{Type: RuleCategorical, Table: map[string]float64{
						"Very secure":     100,
						"Somewhat secure": 60,
						"Not secure":      20,
					}}},
				},
			},
			{
				Name:   "tolerance",
				Weight: 0.5,
				Inputs: []Input{
					{Question: "market_knowledge", Weight: 0.30, Rule: RuleSpec{Type: RuleCategorical, Table: map[string]float64{
						"Low":    20,
						"Medium": 50,
						"High":   85,
					}}},
					{Question: "drawdown_reaction", Weight: 0.40, Rule: RuleSpec{Type: RuleCategorical, Table: map[string]float64{
						"Sell":      0,
						"Sell some": 25,
						"Hold":      60,
						"Buy more":  100,
					}}},
					{Question: "gain_loss_tradeoff", Weight: 0.30, Rule: RuleSpec{Type: RuleCategorical, Table: map[string]float64{
						"NoLossEvenIfLowGain": 0,
						"Loss10Gain20":        25,
						"Loss25Gain50":        50,
						"Loss50Gain100":       80,
					}}},
				},
			},
			{
				Name:   "need",
				Weight: 0,
				Inputs: []Input{
					{Question: "goal_required_return", Weight: 1.0, Rule: RuleSpec{Type: RuleNumeric, Steps: []Step{
						{UpTo: ptr(6), Score: 40},
						{UpTo: ptr(8), Score: 55},
						{UpTo: ptr(10), Score: 70},
						{UpTo: ptr(12), Score: 85},
						{UpTo: ptr(15), Score: 95},
						{Score: 100},
					}}},
				},
			},
		},
		Formula: "min(capacity, tolerance)",
		Bands: []Band{
			{Min: 0, Max: 25, Label: "Conservative"},
			{Min: 25, Max: 50, Label: "Moderate"},
			{Min: 50, Max: 75, Label: "Growth"},
			{Min: 75, Max: 100, Label: "Aggressive"},
		},
		Warnings: []WarningRule{
			{
				Code:    "NEED_EXCEEDS_CAPACITY",
				When:    "need > capacity + 10",
				Message: "Your goals need more risk than you can afford to take: revisit goals/savings.",
			},
			{
				Code:    "TOLERANCE_EXCEEDS_CAPACITY",
				When:    "tolerance > capacity + 20",
				Message: "Your appetite for risk is well above your capacity; the recommendation is capped by capacity.",
			},
		},
	}
}

func ptr(f float64) *float64 { return &f }
