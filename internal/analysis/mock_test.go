package analysis

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// --- Invoker Mock ---

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Text(ctx context.Context, call llm.Call, creds model.Credentials) (*llm.Result, error) {
	args := m.Called(ctx, call, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Result), args.Error(1)
}

func (m *mockInvoker) Structured(ctx context.Context, call llm.Call, schema *llm.Schema, creds model.Credentials, out any) (*llm.Result, error) {
	args := m.Called(ctx, call, schema, creds, out)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Result), args.Error(1)
}

// forRole matches calls made on behalf of role.
func forRole(role model.Role) any {
	return mock.MatchedBy(func(c llm.Call) bool { return c.Role == role })
}

// replyWith fills the Structured out argument with analyses.
func replyWith(analyses ...model.FightAnalysis) func(mock.Arguments) {
	return func(args mock.Arguments) {
		out := args.Get(4).(*model.CardAnalysis)
		*out = model.CardAnalysis{Analyses: analyses}
	}
}

func textResult(text string) *llm.Result {
	return &llm.Result{Text: text}
}
