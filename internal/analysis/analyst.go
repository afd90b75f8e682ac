package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// Analyst produces one free-text report on the whole card from a single
// analytical lens.
type Analyst struct {
	Role    model.Role
	invoker llm.Invoker
}

// NewAnalyst creates an analyst for role.
func NewAnalyst(role model.Role, invoker llm.Invoker) *Analyst {
	return &Analyst{Role: role, invoker: invoker}
}

// Run returns the report. A failed call yields a Degraded result whose text
// names the role and the error; Run never fails outright.
func (a *Analyst) Run(ctx context.Context, card *model.Card, s StageSettings, searchContext string) StageResult[string] {
	log := zap.L().With(zap.String("role", string(a.Role)), zap.String("model", s.Model.String()))
	log.Info("analysis: analyst starting", zap.Int("fights", len(card.Fights)))

	res, err := a.invoker.Text(ctx, s.call(analystPrompt(card, searchContext)), s.Credentials)
	if err != nil {
		log.Error("analysis: analyst failed", zap.Error(err))
		out := StageResult[string]{
			Value:   FailureText(a.Role, err),
			Outcome: Degraded,
			Err:     err,
		}
		out.addUsage(res)
		return out
	}

	log.Info("analysis: analyst complete", zap.Int("chars", len(res.Text)))
	return succeeded(res.Text, res)
}

// FailureText is the report substituted for an analyst whose call failed.
func FailureText(role model.Role, err error) string {
	return fmt.Sprintf("Analysis failed for %s: %v", role, err)
}
