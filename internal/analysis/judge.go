package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// Reports holds the five analyst texts in their fixed prompt order.
type Reports struct {
	Tape   string
	Stats  string
	News   string
	Style  string
	Market string
}

// Get returns the report for an analyst role.
func (r *Reports) Get(role model.Role) string {
	if p := r.slot(role); p != nil {
		return *p
	}
	return ""
}

// Set stores the report for an analyst role.
func (r *Reports) Set(role model.Role, text string) {
	if p := r.slot(role); p != nil {
		*p = text
	}
}

func (r *Reports) slot(role model.Role) *string {
	switch role {
	case model.RoleTapeStudy:
		return &r.Tape
	case model.RoleStatsTrends:
		return &r.Stats
	case model.RoleNewsWeighins:
		return &r.News
	case model.RoleStyleMatchup:
		return &r.Style
	case model.RoleMarketOdds:
		return &r.Market
	}
	return nil
}

// Judge merges the analyst reports into one structured prediction per fight.
type Judge struct {
	invoker llm.Invoker
}

// NewJudge creates a Judge.
func NewJudge(invoker llm.Invoker) *Judge {
	return &Judge{invoker: invoker}
}

// Run asks the model for predictions and reconciles them against the card.
// Any failure yields a Failed result with an empty, non-nil slice.
func (j *Judge) Run(ctx context.Context, card *model.Card, reports Reports, s StageSettings) StageResult[[]model.FightAnalysis] {
	log := zap.L().With(zap.String("role", string(model.RoleJudge)), zap.String("model", s.Model.String()))
	log.Info("analysis: judge starting")

	var reply model.CardAnalysis
	res, err := j.invoker.Structured(ctx, s.call(judgePrompt(card, reports)), cardAnalysisSchema, s.Credentials, &reply)
	if err != nil {
		log.Error("analysis: judge failed", zap.Error(err))
		out := StageResult[[]model.FightAnalysis]{Value: []model.FightAnalysis{}, Outcome: Failed, Err: err}
		out.addUsage(res)
		return out
	}

	analyses, dropped := Reconcile(card, reply.Analyses)
	if dropped > 0 {
		log.Warn("analysis: judge returned predictions that do not match the card",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(analyses)),
		)
	}
	log.Info("analysis: judge complete", zap.Int("analyses", len(analyses)))
	return succeeded(analyses, res)
}

// Reconcile keeps only predictions that trace back to the card: the fight id
// must exist and the pick must name one of its fighters. Picks are rewritten
// to the card's spelling, the first entry for a fight wins, and the model's
// order is preserved. It returns the kept analyses and how many were dropped.
func Reconcile(card *model.Card, in []model.FightAnalysis) ([]model.FightAnalysis, int) {
	out := make([]model.FightAnalysis, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		fight, ok := card.Fight(a.FightID)
		if !ok || seen[a.FightID] {
			continue
		}
		pick, ok := fight.HasFighter(a.Pick)
		if !ok {
			continue
		}
		seen[a.FightID] = true

		a = a.Clone()
		a.Pick = pick
		a.Confidence = clampConfidence(a.Confidence)
		out = append(out, a)
	}
	return out, len(in) - len(out)
}

func clampConfidence(c int) int {
	return max(0, min(100, c))
}
