package model

// FightAnalysis is the structured prediction for one fight.
type FightAnalysis struct {
	FightID       string   `json:"fight_id"`
	Pick          string   `json:"pick"`
	Confidence    int      `json:"confidence"`
	PathToVictory string   `json:"path_to_victory"`
	RiskFlags     []string `json:"risk_flags"`
	Props         []string `json:"props"`
}

// Clone returns a deep copy so later stages can replace fields without
// aliasing the caller's slices.
func (a FightAnalysis) Clone() FightAnalysis {
	out := a
	out.RiskFlags = append([]string{}, a.RiskFlags...)
	out.Props = append([]string{}, a.Props...)
	return out
}

// CardAnalysis is the pipeline's terminal output. Order follows the judge's
// output, not the card; match entries by fight id.
type CardAnalysis struct {
	Analyses []FightAnalysis `json:"analyses"`
}

// NewCardAnalysis wraps analyses, never producing a nil slice so the JSON form
// is always an array.
func NewCardAnalysis(analyses []FightAnalysis) CardAnalysis {
	if analyses == nil {
		analyses = []FightAnalysis{}
	}
	return CardAnalysis{Analyses: analyses}
}

// ByFightID indexes the analyses by fight id.
func (c CardAnalysis) ByFightID() map[string]FightAnalysis {
	out := make(map[string]FightAnalysis, len(c.Analyses))
	for _, a := range c.Analyses {
		out[a.FightID] = a
	}
	return out
}

// CloneAnalyses deep-copies a slice of analyses.
func CloneAnalyses(in []FightAnalysis) []FightAnalysis {
	out := make([]FightAnalysis, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
