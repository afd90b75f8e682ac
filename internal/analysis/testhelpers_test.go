package analysis

import (
	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

func twoFightCard() *model.Card {
	return &model.Card{Fights: []model.Fight{
		{FightID: "f1", Fighter1: "A", Fighter2: "B", WeightClass: "Lightweight"},
		{FightID: "f2", Fighter1: "C", Fighter2: "D", WeightClass: "Welterweight"},
	}}
}

func testDefaults() model.PerRole[RoleDefault] {
	var d model.PerRole[RoleDefault]
	for _, r := range model.AllRoles {
		d.Set(r, RoleDefault{
			Model:       llm.ModelRef{Provider: llm.ProviderOpenAI, Name: "gpt-5-mini"},
			Temperature: 0.1,
			TopP:        0.9,
		})
	}
	return d
}

func testSettings(role model.Role) StageSettings {
	topP := 0.9
	return StageSettings{
		Role:   role,
		Model:  llm.ModelRef{Provider: llm.ProviderOpenAI, Name: "gpt-5-mini"},
		TopP:   &topP,
		System: DefaultPrompt(role),
	}
}

func analysis(id, pick string, confidence int, flags ...string) model.FightAnalysis {
	if flags == nil {
		flags = []string{}
	}
	return model.FightAnalysis{
		FightID:       id,
		Pick:          pick,
		Confidence:    confidence,
		PathToVictory: "decision",
		RiskFlags:     flags,
		Props:         []string{},
	}
}
