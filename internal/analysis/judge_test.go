package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

func TestJudgePromptEmbedsCardAndReportsInOrder(t *testing.T) {
	reports := Reports{Tape: "TAPE", Stats: "STATS", News: "NEWS", Style: "STYLE", Market: "MARKET"}
	prompt := judgePrompt(twoFightCard(), reports)

	for _, want := range []string{"f1", "f2", "A vs B", "C vs D"} {
		assert.Contains(t, prompt, want)
	}

	order := []string{"Tape Study: TAPE", "Stats & Trends: STATS", "News/Weigh-ins: NEWS", "Style Matchup: STYLE", "Market/Odds: MARKET"}
	last := -1
	for _, s := range order {
		idx := strings.Index(prompt, s)
		require.GreaterOrEqual(t, idx, 0, s)
		assert.Greater(t, idx, last, s)
		last = idx
	}
}

func TestReportsGetSet(t *testing.T) {
	var r Reports
	for _, role := range model.AnalystRoles {
		r.Set(role, string(role))
	}
	assert.Equal(t, "news_weighins", r.News)
	assert.Equal(t, "market_odds", r.Get(model.RoleMarketOdds))
	r.Set(model.RoleJudge, "ignored")
	assert.Equal(t, "", r.Get(model.RoleJudge))
}

func TestReconcile(t *testing.T) {
	card := twoFightCard()
	card.Fights[0].Fighter1 = "José Aldo"

	in := []model.FightAnalysis{
		analysis("f2", "d", 140),
		analysis("ghost", "A", 60),
		analysis("f1", "Conor", 70),
		analysis("f1", "jose  aldo", 65),
		analysis("f1", "B", 90),
	}

	out, dropped := Reconcile(card, in)
	require.Len(t, out, 2)
	assert.Equal(t, 3, dropped)

	assert.Equal(t, "f2", out[0].FightID)
	assert.Equal(t, "D", out[0].Pick)
	assert.Equal(t, 100, out[0].Confidence)

	assert.Equal(t, "f1", out[1].FightID)
	assert.Equal(t, "José Aldo", out[1].Pick)
	assert.Equal(t, 65, out[1].Confidence)
}

func TestJudgeRunSuccess(t *testing.T) {
	inv := &mockInvoker{}
	inv.On("Structured", mock.Anything, forRole(model.RoleJudge), mock.Anything, mock.Anything, mock.Anything).
		Run(replyWith(analysis("f2", "C", 58), analysis("f1", "B", 71))).
		Return(textResult(""), nil)

	res := NewJudge(inv).Run(context.Background(), twoFightCard(), Reports{}, testSettings(model.RoleJudge))

	assert.Equal(t, Succeeded, res.Outcome)
	require.Len(t, res.Value, 2)
	// Model order is preserved.
	assert.Equal(t, "f2", res.Value[0].FightID)
	assert.Equal(t, "f1", res.Value[1].FightID)
	for _, a := range res.Value {
		fight, ok := twoFightCard().Fight(a.FightID)
		require.True(t, ok)
		assert.True(t, a.Pick == fight.Fighter1 || a.Pick == fight.Fighter2)
		assert.GreaterOrEqual(t, a.Confidence, 0)
		assert.LessOrEqual(t, a.Confidence, 100)
	}
}

func TestJudgeRunFailureReturnsEmpty(t *testing.T) {
	for name, err := range map[string]error{
		"invocation":       &llm.InvocationError{Kind: llm.KindRateLimit, Status: 429, Err: errors.New("slow down")},
		"schema violation": &llm.InvocationError{Kind: llm.KindSchemaViolation, Err: llm.ErrSchemaViolation},
	} {
		t.Run(name, func(t *testing.T) {
			inv := &mockInvoker{}
			inv.On("Structured", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, err)

			res := NewJudge(inv).Run(context.Background(), twoFightCard(), Reports{}, testSettings(model.RoleJudge))

			assert.Equal(t, Failed, res.Outcome)
			assert.NotNil(t, res.Value)
			assert.Empty(t, res.Value)
			assert.Error(t, res.Err)
		})
	}
}
