package main

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fightcard/internal/analysis"
	"github.com/sells-group/fightcard/internal/config"
	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// stubInvoker answers every text call with a canned report and every
// structured call with the same analyses.
type stubInvoker struct {
	analyses  []model.FightAnalysis
	failJudge bool
}

func (s *stubInvoker) Text(_ context.Context, call llm.Call, _ model.Credentials) (*llm.Result, error) {
	return &llm.Result{Text: "report from " + string(call.Role)}, nil
}

func (s *stubInvoker) Structured(_ context.Context, call llm.Call, _ *llm.Schema, _ model.Credentials, out any) (*llm.Result, error) {
	if s.failJudge && call.Role == model.RoleJudge {
		return nil, &llm.InvocationError{Kind: llm.KindProvider, Provider: llm.ProviderOpenAI, Model: call.Model.Name, Status: 500, Err: eris.New("boom")}
	}
	*out.(*model.CardAnalysis) = model.CardAnalysis{Analyses: model.CloneAnalyses(s.analyses)}
	return &llm.Result{}, nil
}

// testConfig loads the built-in defaults from an empty directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	c, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	return c
}

func testPipeline(t *testing.T, inv llm.Invoker) *analysis.Pipeline {
	t.Helper()
	p, err := newPipeline(testConfig(t), inv)
	require.NoError(t, err)
	return p
}

const twoFightJSON = `{
  "fights": [
    {"fight_id": "f1", "fighter1": "A", "fighter2": "B", "weight_class": "Lightweight"},
    {"fight_id": "f2", "fighter1": "C", "fighter2": "D", "weight_class": "Welterweight"}
  ]
}`

func twoPicks() []model.FightAnalysis {
	return []model.FightAnalysis{
		{FightID: "f1", Pick: "A", Confidence: 70, PathToVictory: "Decision", RiskFlags: []string{"cardio"}, Props: []string{}},
		{FightID: "f2", Pick: "D", Confidence: 60, PathToVictory: "KO", RiskFlags: []string{}, Props: []string{"over 1.5"}},
	}
}
