// Package analysis runs a fight card through the analyst, judge, risk and
// consistency stages and assembles the final predictions.
package analysis

import (
	"github.com/sells-group/fightcard/internal/cost"
	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// Outcome is how a stage finished.
type Outcome string

const (
	// Succeeded means the model produced the stage's value.
	Succeeded Outcome = "succeeded"
	// Degraded means the stage substituted a deterministic fallback value.
	Degraded Outcome = "degraded"
	// Failed means the stage produced an empty value.
	Failed Outcome = "failed"
)

// StageResult is the value a stage produced plus how it got there. Stages
// never return errors: a failed model call is folded into Outcome and Err.
type StageResult[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
	Usage   cost.Usage
	CostUSD float64
}

func succeeded[T any](v T, res *llm.Result) StageResult[T] {
	out := StageResult[T]{Value: v, Outcome: Succeeded}
	out.addUsage(res)
	return out
}

func (r *StageResult[T]) addUsage(res *llm.Result) {
	if res == nil {
		return
	}
	r.Usage.Add(res.Usage)
	r.CostUSD += res.CostUSD
}

// StageReport records one stage of a run.
type StageReport struct {
	Role       model.Role `json:"role"`
	Outcome    Outcome    `json:"outcome"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
	Usage      cost.Usage `json:"usage"`
	CostUSD    float64    `json:"cost_usd"`
}
