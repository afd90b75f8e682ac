package main

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fightcard/internal/analysis"
	"github.com/sells-group/fightcard/internal/config"
	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
	"github.com/sells-group/fightcard/internal/notify"
	"github.com/sells-group/fightcard/internal/resilience"
	"github.com/sells-group/fightcard/pkg/serper"
)

// appEnv holds everything the analyze, wizard and serve commands share.
type appEnv struct {
	Pipeline *analysis.Pipeline
	Telegram *notify.Telegram // nil unless telegram is configured
}

// initEnv builds the provider router and the pipeline from c. The Telegram
// sink is connected only when publish is set.
func initEnv(c *config.Config, publish bool) (*appEnv, error) {
	p, err := newPipeline(c, newRouter(c))
	if err != nil {
		return nil, err
	}
	env := &appEnv{Pipeline: p}
	if publish {
		if env.Telegram, err = initTelegram(c); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func newRouter(c *config.Config) *llm.Router {
	return llm.NewRouter(llm.RouterConfig{
		Credentials:          c.Credentials(),
		MaxTokens:            c.LLM.MaxTokens,
		RequestsPerSecond:    c.LLM.RequestsPerSecond,
		Burst:                c.LLM.Burst,
		Retry:                resilience.NewRetryConfig(c.LLM.Retry.MaxAttempts, c.LLM.Retry.InitialBackoffMs, c.LLM.Retry.MaxBackoffMs),
		Breaker:              resilience.NewBreakerConfig(c.LLM.Circuit.FailureThreshold, c.LLM.Circuit.ResetTimeoutSecs),
		Rates:                c.Pricing,
		GeminiThinkingBudget: c.LLM.GeminiThinkingBudget,
		Clients: llm.DefaultClients(llm.BaseURLs{
			Anthropic:  c.Anthropic.BaseURL,
			OpenAI:     c.OpenAI.BaseURL,
			Gemini:     c.Gemini.BaseURL,
			Perplexity: c.Perplexity.BaseURL,
		}),
	})
}

func newPipeline(c *config.Config, invoker llm.Invoker) (*analysis.Pipeline, error) {
	defaults, err := roleDefaults(c)
	if err != nil {
		return nil, err
	}

	searchURL := c.Serper.BaseURL
	searcher := analysis.NewSearcher(analysis.SearchConfig{
		Results:     c.Pipeline.SearchResults,
		Concurrency: c.Pipeline.SearchConcurrency,
		TimeRange:   c.Pipeline.SearchTimeRange,
		Retry:       resilience.NewRetryConfig(c.LLM.Retry.MaxAttempts, c.LLM.Retry.InitialBackoffMs, c.LLM.Retry.MaxBackoffMs),
		Rates:       c.Pricing,
		NewClient: func(key string) serper.Client {
			var opts []serper.Option
			if searchURL != "" {
				opts = append(opts, serper.WithBaseURL(searchURL))
			}
			return serper.NewClient(key, opts...)
		},
	})

	return analysis.New(invoker, analysis.Options{
		Defaults:    defaults,
		Credentials: c.Credentials(),
		FailOnEmpty: c.Pipeline.FailOnEmpty,
		Searcher:    searcher,
	}), nil
}

// roleDefaults converts the configured role table into pipeline defaults.
func roleDefaults(c *config.Config) (model.PerRole[analysis.RoleDefault], error) {
	var out model.PerRole[analysis.RoleDefault]
	models, err := c.RoleModels()
	if err != nil {
		return out, err
	}
	for _, r := range model.AllRoles {
		rc := c.Roles.Get(r)
		out.Set(r, analysis.RoleDefault{
			Model:       models.Get(r),
			Temperature: rc.Temperature,
			TopP:        rc.TopP,
			Prompt:      rc.Prompt,
		})
	}
	return out, nil
}

// initTelegram connects the publish sink. It fails when publishing was
// requested without a bot token or chat id.
func initTelegram(c *config.Config) (*notify.Telegram, error) {
	if c.Telegram.Token == "" || c.Telegram.ChatID == 0 {
		return nil, eris.New("telegram.token and telegram.chat_id are required to publish")
	}
	tg, err := notify.NewTelegram(c.Telegram.Token, c.Telegram.ChatID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("telegram publishing enabled", zap.Int64("chat_id", c.Telegram.ChatID))
	return tg, nil
}
