package questionnaire

func bound(f float64) *float64 { return &f }

// ThreePillarQuestions returns the catalog questions used by
// scoring.ThreePillarConfig. All are active.
func ThreePillarQuestions() []Question {
	qs := []Question{
		{
			Key: "age", Label: "What is your age?", Type: SingleSelect, Module: "profile",
			Options: []string{"Under 25", "25-35", "36-50", "51+"},
		},
		{
			Key: "emi_ratio", Label: "What share of your monthly income goes to loan EMIs (%)?",
			Type: Numeric, Module: "capacity", Min: bound(0), Max: bound(100),
		},
		{
			Key: "liquidity_withdrawal_2y", Label: "What share of this investment might you withdraw within 2 years (%)?",
			Type: Numeric, Module: "capacity", Min: bound(0), Max: bound(100),
		},
		{
			Key: "income_security", Label: "How secure is your income?", Type: SingleSelect, Module: "capacity",
			Options: []string{"Very secure", "Somewhat secure", "Not secure"},
		},
		{
			Key: "market_knowledge", Label: "How would you rate your investment knowledge?", Type: SingleSelect, Module: "tolerance",
			Options: []string{"Low", "Medium", "High"},
		},
		{
			Key: "drawdown_reaction", Label: "Your portfolio falls 20% in a month. What do you do?", Type: SingleSelect, Module: "tolerance",
			Options: []string{"Sell", "Sell some", "Hold", "Buy more"},
		},
		{
			Key: "gain_loss_tradeoff", Label: "Which outcome range would you accept over one year?", Type: SingleSelect, Module: "tolerance",
			Options: []string{"NoLossEvenIfLowGain", "Loss10Gain20", "Loss25Gain50", "Loss50Gain100"},
		},
		{
			Key: "goal_required_return", Label: "What annual return do your goals require (%)?",
			Type: Numeric, Module: "need", Min: bound(0), Max: bound(100),
		},
		{
			Key: "investment_goals", Label: "What are you investing for?", Type: MultiSelect, Module: "profile",
			Options: []string{"Retirement", "Education", "Home", "Wealth creation"},
		},
	}
	for i := range qs {
		qs[i].Active = true
	}
	return qs
}

// ThreePillarBindings binds ThreePillarQuestions to a version. The goals
// question is collected for display and left unscored.
func ThreePillarBindings() []Binding {
	return []Binding{
		{Question: "age", Required: true, Order: 1, Alias: "age_band"},
		{Question: "emi_ratio", Required: true, Order: 2, Transform: TransformPercent},
		{Question: "liquidity_withdrawal_2y", Required: true, Order: 3, Transform: TransformPercent},
		{Question: "income_security", Required: true, Order: 4},
		{Question: "market_knowledge", Required: true, Order: 5},
		{Question: "drawdown_reaction", Required: true, Order: 6},
		{Question: "gain_loss_tradeoff", Required: true, Order: 7},
		{Question: "goal_required_return", Required: true, Order: 8, Transform: TransformPercent},
		{Question: "investment_goals", Order: 9},
	}
}
