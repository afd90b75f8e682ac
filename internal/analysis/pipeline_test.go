package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fightcard/internal/cost"
	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

func newTestPipeline(inv llm.Invoker, opts Options) *Pipeline {
	if opts.Defaults.Judge.Model.IsZero() {
		opts.Defaults = testDefaults()
	}
	return New(inv, opts)
}

func expectAnalysts(inv *mockInvoker) {
	for _, role := range model.AnalystRoles {
		inv.On("Text", mock.Anything, forRole(role), mock.Anything).
			Return(&llm.Result{Text: "report from " + string(role), Usage: cost.Usage{InputTokens: 10, OutputTokens: 5}, CostUSD: 0.01}, nil)
	}
}

func TestPipelineRunHappyPath(t *testing.T) {
	inv := &mockInvoker{}
	expectAnalysts(inv)

	var judgeCall llm.Call
	inv.On("Structured", mock.Anything, forRole(model.RoleJudge), mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			judgeCall = args.Get(1).(llm.Call)
			replyWith(analysis("f1", "A", 95), analysis("f2", "D", 70, "a", "b"))(args)
		}).
		Return(&llm.Result{CostUSD: 0.02}, nil)
	inv.On("Structured", mock.Anything, forRole(model.RoleRiskScorer), mock.Anything, mock.Anything, mock.Anything).
		Run(replyWith(analysis("f1", "A", 95, "short notice"))).
		Return(&llm.Result{}, nil)
	inv.On("Structured", mock.Anything, forRole(model.RoleConsistencyChecker), mock.Anything, mock.Anything, mock.Anything).
		Run(replyWith(analysis("f1", "A", 88), analysis("f2", "D", 62))).
		Return(&llm.Result{}, nil)

	run, err := newTestPipeline(inv, Options{}).Run(context.Background(), twoFightCard())
	require.NoError(t, err)

	assert.NotEqual(t, [16]byte{}, [16]byte(run.ID))
	require.Len(t, run.Stages, len(model.AllRoles))
	for i, role := range model.AllRoles {
		assert.Equal(t, role, run.Stages[i].Role)
		assert.Equal(t, Succeeded, run.Stages[i].Outcome)
	}
	assert.Empty(t, run.Degraded())

	for _, role := range model.AnalystRoles {
		assert.Contains(t, judgeCall.Prompt, "report from "+string(role))
	}

	byID := run.Analysis.ByFightID()
	require.Len(t, byID, 2)
	assert.Equal(t, 88, byID["f1"].Confidence)
	assert.Equal(t, []string{"short notice"}, byID["f1"].RiskFlags)
	assert.Equal(t, "D", byID["f2"].Pick)
	assert.Equal(t, 62, byID["f2"].Confidence)

	assert.Equal(t, int64(75), run.Usage.Total())
	assert.InDelta(t, 0.07, run.CostUSD, 0.0001)
	inv.AssertExpectations(t)
}

func TestPipelineAllAnalystsFail(t *testing.T) {
	card := &model.Card{Fights: []model.Fight{{FightID: "ufc-1", Fighter1: "A", Fighter2: "B"}}}

	inv := &mockInvoker{}
	inv.On("Text", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &llm.InvocationError{Kind: llm.KindAuth, Err: llm.ErrMissingCredential})

	var judgePrompt string
	inv.On("Structured", mock.Anything, forRole(model.RoleJudge), mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			judgePrompt = args.Get(1).(llm.Call).Prompt
			replyWith(analysis("ufc-1", "B", 55))(args)
		}).
		Return(&llm.Result{}, nil)
	inv.On("Structured", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &llm.InvocationError{Kind: llm.KindNetwork, Err: errors.New("down")})

	run, err := newTestPipeline(inv, Options{}).Run(context.Background(), card)
	require.NoError(t, err)

	for _, role := range model.AnalystRoles {
		assert.Contains(t, judgePrompt, "Analysis failed for "+string(role))
	}
	require.Len(t, run.Analysis.Analyses, 1)
	a := run.Analysis.Analyses[0]
	assert.Equal(t, "ufc-1", a.FightID)
	assert.Contains(t, []string{"A", "B"}, a.Pick)

	assert.Equal(t, []model.Role{
		model.RoleTapeStudy, model.RoleStatsTrends, model.RoleNewsWeighins, model.RoleStyleMatchup,
		model.RoleMarketOdds, model.RoleRiskScorer, model.RoleConsistencyChecker,
	}, run.Degraded())
}

func TestPipelineJudgeFailureCompletesEmpty(t *testing.T) {
	inv := &mockInvoker{}
	expectAnalysts(inv)
	inv.On("Structured", mock.Anything, forRole(model.RoleJudge), mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &llm.InvocationError{Kind: llm.KindSchemaViolation, Err: llm.ErrSchemaViolation})

	run, err := newTestPipeline(inv, Options{}).Run(context.Background(), twoFightCard())
	require.NoError(t, err)

	assert.NotNil(t, run.Analysis.Analyses)
	assert.Empty(t, run.Analysis.Analyses)
	assert.Equal(t, []model.Role{model.RoleJudge}, run.Degraded())

	stages := map[model.Role]StageReport{}
	for _, s := range run.Stages {
		stages[s.Role] = s
	}
	assert.Equal(t, Failed, stages[model.RoleJudge].Outcome)
	assert.NotEmpty(t, stages[model.RoleJudge].Error)
	assert.Equal(t, Succeeded, stages[model.RoleRiskScorer].Outcome)
	assert.Equal(t, Succeeded, stages[model.RoleConsistencyChecker].Outcome)
	inv.AssertNumberOfCalls(t, "Structured", 1)
}

func TestPipelineFailOnEmpty(t *testing.T) {
	inv := &mockInvoker{}
	expectAnalysts(inv)
	inv.On("Structured", mock.Anything, forRole(model.RoleJudge), mock.Anything, mock.Anything, mock.Anything).
		Run(replyWith()).
		Return(&llm.Result{}, nil)

	run, err := newTestPipeline(inv, Options{FailOnEmpty: true}).Run(context.Background(), twoFightCard())
	assert.Nil(t, run)
	assert.True(t, errors.Is(err, ErrNoPredictions))
}

func TestPipelineRejectsInvalidCard(t *testing.T) {
	inv := &mockInvoker{}
	card := &model.Card{Fights: []model.Fight{{FightID: "f1", Fighter1: "A", Fighter2: "a"}}}

	_, err := newTestPipeline(inv, Options{}).Run(context.Background(), card)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Error(), "fighters cannot be the same person")
	inv.AssertNotCalled(t, "Text", mock.Anything, mock.Anything, mock.Anything)

	_, err = newTestPipeline(inv, Options{}).Run(context.Background(), nil)
	assert.True(t, errors.As(err, &ve))
}

func TestPipelineRejectsUnsupportedModelOverride(t *testing.T) {
	inv := &mockInvoker{}
	card := twoFightCard()
	card.AgentModels.Judge = "mistral-large"

	_, err := newTestPipeline(inv, Options{}).Run(context.Background(), card)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	inv.AssertNotCalled(t, "Text", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipelineReportOrderIgnoresCompletionOrder(t *testing.T) {
	inv := &mockInvoker{}
	for i, role := range model.AnalystRoles {
		delay := time.Duration(len(model.AnalystRoles)-i) * 5 * time.Millisecond
		inv.On("Text", mock.Anything, forRole(role), mock.Anything).
			WaitUntil(time.After(delay)).
			Return(textResult(strings.ToUpper(string(role))), nil)
	}
	var prompt string
	inv.On("Structured", mock.Anything, forRole(model.RoleJudge), mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { prompt = args.Get(1).(llm.Call).Prompt }).
		Return(&llm.Result{}, nil)

	_, err := newTestPipeline(inv, Options{}).Run(context.Background(), twoFightCard())
	require.NoError(t, err)

	for _, want := range []string{"f1", "f2", "A vs B", "C vs D"} {
		assert.Contains(t, prompt, want)
	}
	last := -1
	for _, role := range model.AnalystRoles {
		idx := strings.Index(prompt, role.Label()+": "+strings.ToUpper(string(role)))
		require.GreaterOrEqual(t, idx, 0)
		assert.Greater(t, idx, last)
		last = idx
	}
}

func TestPipelineRecoversPanic(t *testing.T) {
	inv := &mockInvoker{}
	expectAnalysts(inv)
	inv.On("Structured", mock.Anything, forRole(model.RoleJudge), mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("judge exploded") })

	run, err := newTestPipeline(inv, Options{}).Run(context.Background(), twoFightCard())
	assert.Nil(t, run)

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "judge", pe.Stage)
	assert.Contains(t, pe.Error(), "judge exploded")
}

func TestPipelineRecoversAnalystPanic(t *testing.T) {
	inv := &mockInvoker{}
	inv.On("Text", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("analyst exploded") })

	_, err := newTestPipeline(inv, Options{}).Run(context.Background(), twoFightCard())

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "analysts", pe.Stage)
}

func TestPipelineRecoversResolvePanic(t *testing.T) {
	orig := resolveSettings
	t.Cleanup(func() { resolveSettings = orig })
	resolveSettings = func(*model.Card, model.PerRole[RoleDefault], model.Credentials) (model.PerRole[StageSettings], error) {
		panic("resolve exploded")
	}

	inv := &mockInvoker{}
	run, err := newTestPipeline(inv, Options{}).Run(context.Background(), twoFightCard())
	assert.Nil(t, run)

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "resolve", pe.Stage)
	assert.NotEqual(t, uuid.Nil, pe.RunID)
	assert.Contains(t, pe.Error(), "resolve exploded")
	inv.AssertNotCalled(t, "Text", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipelineWebSearchFeedsNewsAnalyst(t *testing.T) {
	f := &fakeSerper{}
	card := twoFightCard()
	card.UseWebSearch = true
	card.APIKeys.Serper = "serp"

	inv := &mockInvoker{}
	var newsPrompt string
	inv.On("Text", mock.Anything, forRole(model.RoleNewsWeighins), mock.Anything).
		Run(func(args mock.Arguments) { newsPrompt = args.Get(1).(llm.Call).Prompt }).
		Return(textResult("news"), nil)
	inv.On("Text", mock.Anything, mock.Anything, mock.Anything).Return(textResult("other"), nil)
	inv.On("Structured", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&llm.Result{}, nil)

	_, err := newTestPipeline(inv, Options{Searcher: newTestSearcher(f)}).Run(context.Background(), card)
	require.NoError(t, err)

	assert.Contains(t, newsPrompt, "Recent web search results:")
	assert.Len(t, f.queries, 2)
}

func TestPipelineErrorMessage(t *testing.T) {
	err := &PipelineError{Stage: "judge", Err: errors.New("x")}
	assert.Contains(t, err.Error(), "judge: x")
	assert.True(t, errors.Is(err, err.Err))
}
