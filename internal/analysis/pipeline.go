package analysis

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fightcard/internal/cost"
	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// ErrNoPredictions is returned when FailOnEmpty is set and the judge
// produced nothing.
var ErrNoPredictions = eris.New("judge produced no predictions")

// PipelineError is an orchestration failure: something other than a model
// call went wrong and no partial result is returned.
type PipelineError struct {
	RunID uuid.UUID
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("pipeline run %s: %v", e.RunID, e.Err)
	}
	return fmt.Sprintf("pipeline run %s: %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Options configures a Pipeline.
type Options struct {
	// Defaults holds the per-role settings used when a card has no override.
	Defaults model.PerRole[RoleDefault]
	// Credentials are the process-wide provider keys.
	Credentials model.Credentials
	// FailOnEmpty turns an empty judge result into ErrNoPredictions.
	FailOnEmpty bool
	// Searcher enables web search for cards that ask for it. Nil disables it.
	Searcher *Searcher
}

// Pipeline runs cards through every stage. It holds only read-only state
// and is safe for concurrent runs.
type Pipeline struct {
	opts        Options
	analysts    [len(model.AnalystRoles)]*Analyst
	judge       *Judge
	risk        *RiskScorer
	consistency *ConsistencyChecker
}

// New creates a Pipeline whose stages call invoker.
func New(invoker llm.Invoker, opts Options) *Pipeline {
	p := &Pipeline{
		opts:        opts,
		judge:       NewJudge(invoker),
		risk:        NewRiskScorer(invoker),
		consistency: NewConsistencyChecker(invoker),
	}
	for i, role := range model.AnalystRoles {
		p.analysts[i] = NewAnalyst(role, invoker)
	}
	return p
}

// Run is the result of one pipeline run.
type Run struct {
	ID       uuid.UUID          `json:"run_id"`
	Analysis model.CardAnalysis `json:"analysis"`
	Stages   []StageReport      `json:"stages"`
	Usage    cost.Usage         `json:"usage"`
	CostUSD  float64            `json:"cost_usd"`
}

// Degraded lists the roles whose stage did not succeed, in stage order.
func (r *Run) Degraded() []model.Role {
	var out []model.Role
	for _, s := range r.Stages {
		if s.Outcome != Succeeded {
			out = append(out, s.Role)
		}
	}
	return out
}

// Run validates card and executes the analysts concurrently, then the
// judge, risk and consistency stages in order. It returns a
// *model.ValidationError for a bad card and a *PipelineError for anything
// else that goes wrong outside a model call.
func (p *Pipeline) Run(ctx context.Context, card *model.Card) (run *Run, err error) {
	runID := uuid.New()
	log := zap.L().With(zap.String("run_id", runID.String()))

	stage := "validate"
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: panic",
				zap.String("stage", stage),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			run = nil
			err = &PipelineError{RunID: runID, Stage: stage, Err: eris.Errorf("panic: %v", r)}
		}
	}()

	if card == nil {
		return nil, &model.ValidationError{Problems: []string{"card is required"}}
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	stage = "resolve"
	settings, err := resolveSettings(card, p.opts.Defaults, p.opts.Credentials)
	if err != nil {
		return nil, err
	}

	run = &Run{ID: runID}
	log.Info("pipeline: starting card analysis",
		zap.Int("fights", len(card.Fights)),
		zap.Bool("web_search", card.UseWebSearch),
	)
	start := time.Now()

	trackStage := func(role model.Role, began time.Time, outcome Outcome, stageErr error, usage cost.Usage, usd float64) {
		report := StageReport{
			Role:       role,
			Outcome:    outcome,
			DurationMs: time.Since(began).Milliseconds(),
			Usage:      usage,
			CostUSD:    usd,
		}
		fields := []zap.Field{
			zap.String("stage", string(role)),
			zap.String("outcome", string(outcome)),
			zap.Int64("duration_ms", report.DurationMs),
		}
		if stageErr != nil {
			report.Error = stageErr.Error()
			log.Warn("pipeline: stage finished without model result", append(fields, zap.Error(stageErr))...)
		} else {
			log.Info("pipeline: stage complete", fields...)
		}
		run.Stages = append(run.Stages, report)
		run.Usage.Add(usage)
		run.CostUSD += usd
	}

	// Analysts: fixed slots so report order never depends on completion order.
	stage = "analysts"
	var results [len(model.AnalystRoles)]StageResult[string]
	var began [len(model.AnalystRoles)]time.Time
	g, gCtx := errgroup.WithContext(ctx)
	for i, a := range p.analysts {
		g.Go(func() (goErr error) {
			defer func() {
				if r := recover(); r != nil {
					goErr = eris.Errorf("%s panicked: %v", a.Role, r)
				}
			}()
			began[i] = time.Now()
			searchContext := ""
			if a.Role == model.RoleNewsWeighins && card.UseWebSearch && p.opts.Searcher != nil {
				searchContext = p.opts.Searcher.Context(gCtx, card, settings.Get(a.Role).Credentials.Serper)
			}
			results[i] = a.Run(gCtx, card, settings.Get(a.Role), searchContext)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &PipelineError{RunID: run.ID, Stage: stage, Err: err}
	}

	var reports Reports
	for i, role := range model.AnalystRoles {
		r := results[i]
		reports.Set(role, r.Value)
		trackStage(role, began[i], r.Outcome, r.Err, r.Usage, r.CostUSD)
	}

	stage = string(model.RoleJudge)
	t := time.Now()
	judged := p.judge.Run(ctx, card, reports, settings.Get(model.RoleJudge))
	trackStage(model.RoleJudge, t, judged.Outcome, judged.Err, judged.Usage, judged.CostUSD)

	if len(judged.Value) == 0 && p.opts.FailOnEmpty {
		log.Error("pipeline: judge produced no predictions")
		return nil, ErrNoPredictions
	}

	stage = string(model.RoleRiskScorer)
	t = time.Now()
	risked := p.risk.Run(ctx, judged.Value, settings.Get(model.RoleRiskScorer))
	trackStage(model.RoleRiskScorer, t, risked.Outcome, risked.Err, risked.Usage, risked.CostUSD)

	stage = string(model.RoleConsistencyChecker)
	t = time.Now()
	checked := p.consistency.Run(ctx, risked.Value, settings.Get(model.RoleConsistencyChecker))
	trackStage(model.RoleConsistencyChecker, t, checked.Outcome, checked.Err, checked.Usage, checked.CostUSD)

	if err := ctx.Err(); err != nil {
		return nil, &PipelineError{RunID: run.ID, Stage: stage, Err: eris.Wrap(err, "run canceled")}
	}

	run.Analysis = model.NewCardAnalysis(checked.Value)
	log.Info("pipeline: card analysis complete",
		zap.Int("analyses", len(run.Analysis.Analyses)),
		zap.String("degraded", joinRoles(run.Degraded())),
		zap.Int64("tokens", run.Usage.Total()),
		zap.Float64("estimated_cost_usd", run.CostUSD),
		zap.Duration("elapsed", time.Since(start)),
	)
	return run, nil
}

func joinRoles(roles []model.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
