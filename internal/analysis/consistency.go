package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// ConsistencyChecker recalibrates confidence across the whole card.
type ConsistencyChecker struct {
	invoker llm.Invoker
}

// NewConsistencyChecker creates a ConsistencyChecker.
func NewConsistencyChecker(invoker llm.Invoker) *ConsistencyChecker {
	return &ConsistencyChecker{invoker: invoker}
}

// Run takes only the recalibrated confidence and any added flags from the
// model; picks never change. On failure ConsistencyFallback is applied.
func (c *ConsistencyChecker) Run(ctx context.Context, analyses []model.FightAnalysis, s StageSettings) StageResult[[]model.FightAnalysis] {
	if len(analyses) == 0 {
		return StageResult[[]model.FightAnalysis]{Value: []model.FightAnalysis{}, Outcome: Succeeded}
	}
	log := zap.L().With(zap.String("role", string(model.RoleConsistencyChecker)), zap.String("model", s.Model.String()))
	log.Info("analysis: consistency check starting", zap.Int("analyses", len(analyses)))

	prompt, err := consistencyPrompt(analyses)
	if err != nil {
		return degraded(ConsistencyFallback(analyses), err, nil)
	}

	var reply model.CardAnalysis
	res, err := c.invoker.Structured(ctx, s.call(prompt), cardAnalysisSchema, s.Credentials, &reply)
	if err != nil {
		log.Error("analysis: consistency check failed, using fallback", zap.Error(err))
		return degraded(ConsistencyFallback(analyses), err, res)
	}

	log.Info("analysis: consistency check complete")
	return succeeded(mergeConsistency(analyses, reply.Analyses), res)
}

// ConsistencyFallback lowers confidence by 10, never below 50, for every
// analysis carrying more than one risk flag.
func ConsistencyFallback(analyses []model.FightAnalysis) []model.FightAnalysis {
	out := model.CloneAnalyses(analyses)
	for i := range out {
		if len(out[i].RiskFlags) > 1 {
			out[i].Confidence = max(50, out[i].Confidence-10)
		}
	}
	return out
}

func mergeConsistency(in, reply []model.FightAnalysis) []model.FightAnalysis {
	byID := firstByID(reply)
	out := model.CloneAnalyses(in)
	for i := range out {
		r, ok := byID[out[i].FightID]
		if !ok {
			continue
		}
		out[i].Confidence = clampConfidence(r.Confidence)
		out[i].RiskFlags = growFlags(out[i].RiskFlags, r.RiskFlags)
	}
	return out
}
