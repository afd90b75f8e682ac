package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

var defaultPrompts = map[model.Role]string{
	model.RoleTapeStudy: `You are a UFC tape study expert analyzing fight footage and past performances.
Focus on fighter tendencies, striking patterns, grappling weaknesses, and recent performance.
Provide detailed insights for each fight including technical advantages and potential fight-ending sequences.`,

	model.RoleStatsTrends: `You are a UFC statistics and trends analyst.
Analyze using statistical data and historical trends including win/loss records, striking accuracy, takedown defense, and finish rates.
Provide statistical comparisons and trend analysis for each fight.`,

	model.RoleNewsWeighins: `You are a UFC news and weigh-ins analyst.
Analyze recent news, weigh-in reports, and external factors including injuries, training camp reports, and press conferences.
Provide insights on how external factors might affect each fight.`,

	model.RoleStyleMatchup: `You are a UFC style matchup analyst.
Analyze fighting styles and matchup dynamics considering stand-up vs ground game, pace, durability, and experience levels.
Provide style advantage analysis and matchup predictions for each fight.`,

	model.RoleMarketOdds: `You are a UFC market and odds analyst.
Analyze betting odds and market movements considering line movements, public money, and sharp money.
Provide odds analysis and value picks for each fight.`,

	model.RoleJudge: `You are the final judge synthesizing all analyses into a definitive prediction.
Synthesize the analyses from different experts for each fight on the UFC card.`,

	model.RoleRiskScorer: `You are an expert risk assessor for UFC fights. Review the current fight analyses and identify additional risk factors that could affect outcomes.

Consider factors like:
- Fighter form and recent performance
- Injury history and recovery time
- Weight cut difficulties
- Training camp issues
- Age and experience factors
- Style matchup concerns
- Overconfidence indicators

Add relevant risk flags to each analysis while preserving existing ones.`,

	model.RoleConsistencyChecker: `You are a consistency checker for UFC fight predictions. Review the analyses for logical consistency and adjust confidence scores as needed.

Consider:
- Conflicting signals between different analysis aspects
- Overconfidence in uncertain matchups
- Underestimation of upsets
- Risk factors that should reduce confidence
- Consistency with historical outcomes

Adjust confidence scores (0-100) to better reflect realistic probabilities while maintaining the pick.`,
}

// DefaultPrompt returns the built-in system prompt for role.
func DefaultPrompt(role model.Role) string {
	return defaultPrompts[role]
}

func analystPrompt(card *model.Card, searchContext string) string {
	var b strings.Builder
	b.WriteString("Analyze this UFC card:\n")
	b.WriteString(card.Summary())
	if searchContext != "" {
		b.WriteString("\n\n")
		b.WriteString(searchContext)
	}
	return b.String()
}

func judgePrompt(card *model.Card, reports Reports) string {
	var b strings.Builder
	b.WriteString("Synthesize these analyses into final predictions for this UFC card:\n")
	b.WriteString(card.Summary())
	b.WriteString("\n\n")
	for _, role := range model.AnalystRoles {
		fmt.Fprintf(&b, "%s: %s\n", role.Label(), reports.Get(role))
	}
	b.WriteString("\nProvide final analysis for all fights with picks, confidence, path to victory, risk flags, and props.\n")
	b.WriteString("Use each fight_id exactly as listed above. Each pick must be exactly one of that fight's two fighter names. ")
	b.WriteString("Confidence is an integer from 0 to 100.")
	return b.String()
}

func riskPrompt(analyses []model.FightAnalysis) (string, error) {
	body, err := analysesJSON(analyses)
	if err != nil {
		return "", err
	}
	return "Review these fight predictions and enhance the risk flags:\n\n" + body +
		"\n\nAdd any additional risk factors you identify. Preserve existing risk flags and add new relevant ones.\n" +
		"Return the complete updated analysis with enhanced risk assessment.", nil
}

func consistencyPrompt(analyses []model.FightAnalysis) (string, error) {
	body, err := analysesJSON(analyses)
	if err != nil {
		return "", err
	}
	return "Review these fight predictions for consistency and adjust confidence scores if needed:\n\n" + body +
		"\n\nCheck for logical consistency and adjust confidence scores to reflect realistic probabilities.\n" +
		"Maintain the same picks but calibrate confidence appropriately.", nil
}

func analysesJSON(analyses []model.FightAnalysis) (string, error) {
	data, err := json.Marshal(model.NewCardAnalysis(analyses))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// cardAnalysisSchema is the structured reply shared by the judge, risk and
// consistency stages.
var cardAnalysisSchema = llm.MustSchema("card_analysis", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"analyses": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"fight_id":        map[string]any{"type": "string"},
					"pick":            map[string]any{"type": "string"},
					"confidence":      map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
					"path_to_victory": map[string]any{"type": "string"},
					"risk_flags":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"props":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"fight_id", "pick", "confidence", "path_to_victory", "risk_flags", "props"},
			},
		},
	},
	"required": []string{"analyses"},
})
