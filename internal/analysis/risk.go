package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

const (
	flagOverconfidence = "high confidence may indicate overestimation"
	flagNoMajorRisks   = "no major risks identified"
)

// RiskScorer adds risk annotations to the judge's predictions.
type RiskScorer struct {
	invoker llm.Invoker
}

// NewRiskScorer creates a RiskScorer.
func NewRiskScorer(invoker llm.Invoker) *RiskScorer {
	return &RiskScorer{invoker: invoker}
}

// Run merges the model's risk review into analyses. Pick, fight id and
// confidence always come from the input and flags only grow. On failure the
// deterministic RiskFallback is applied and the result is Degraded.
func (r *RiskScorer) Run(ctx context.Context, analyses []model.FightAnalysis, s StageSettings) StageResult[[]model.FightAnalysis] {
	if len(analyses) == 0 {
		return StageResult[[]model.FightAnalysis]{Value: []model.FightAnalysis{}, Outcome: Succeeded}
	}
	log := zap.L().With(zap.String("role", string(model.RoleRiskScorer)), zap.String("model", s.Model.String()))
	log.Info("analysis: risk scorer starting", zap.Int("analyses", len(analyses)))

	prompt, err := riskPrompt(analyses)
	if err != nil {
		return degraded(RiskFallback(analyses), err, nil)
	}

	var reply model.CardAnalysis
	res, err := r.invoker.Structured(ctx, s.call(prompt), cardAnalysisSchema, s.Credentials, &reply)
	if err != nil {
		log.Error("analysis: risk scorer failed, using fallback", zap.Error(err))
		return degraded(RiskFallback(analyses), err, res)
	}

	log.Info("analysis: risk scorer complete")
	return succeeded(mergeRisk(analyses, reply.Analyses), res)
}

// RiskFallback annotates each analysis without a model. Both rules look at
// the analysis as it arrived: confidence above 90 adds an overconfidence
// flag, and an empty flag list adds a "no major risks" note.
func RiskFallback(analyses []model.FightAnalysis) []model.FightAnalysis {
	out := model.CloneAnalyses(analyses)
	for i := range out {
		hadFlags := len(analyses[i].RiskFlags) > 0
		if out[i].Confidence > 90 {
			out[i].RiskFlags = append(out[i].RiskFlags, flagOverconfidence)
		}
		if !hadFlags {
			out[i].RiskFlags = append(out[i].RiskFlags, flagNoMajorRisks)
		}
	}
	return out
}

func mergeRisk(in, reply []model.FightAnalysis) []model.FightAnalysis {
	byID := firstByID(reply)
	out := model.CloneAnalyses(in)
	for i := range out {
		r, ok := byID[out[i].FightID]
		if !ok {
			continue
		}
		out[i].RiskFlags = growFlags(out[i].RiskFlags, r.RiskFlags)
		if r.PathToVictory != "" {
			out[i].PathToVictory = r.PathToVictory
		}
		if len(r.Props) > 0 {
			out[i].Props = append([]string{}, r.Props...)
		}
	}
	return out
}

// growFlags keeps every existing flag in order and appends the flags from
// added that are not already present.
func growFlags(existing, added []string) []string {
	have := make(map[string]bool, len(existing))
	for _, f := range existing {
		have[f] = true
	}
	out := append([]string{}, existing...)
	for _, f := range added {
		if f == "" || have[f] {
			continue
		}
		have[f] = true
		out = append(out, f)
	}
	return out
}

func firstByID(analyses []model.FightAnalysis) map[string]model.FightAnalysis {
	out := make(map[string]model.FightAnalysis, len(analyses))
	for _, a := range analyses {
		if _, ok := out[a.FightID]; !ok {
			out[a.FightID] = a
		}
	}
	return out
}

func degraded(v []model.FightAnalysis, err error, res *llm.Result) StageResult[[]model.FightAnalysis] {
	out := StageResult[[]model.FightAnalysis]{Value: v, Outcome: Degraded, Err: err}
	out.addUsage(res)
	return out
}
