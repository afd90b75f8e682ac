// Package cost estimates the USD cost of model and search calls.
package cost

import "go.uber.org/zap"

// Rates holds pricing for every provider the pipeline talks to.
type Rates struct {
	// Models maps a model name to its token pricing.
	Models     map[string]ModelRate `yaml:"models" mapstructure:"models"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
	Serper     SerperRate           `yaml:"serper" mapstructure:"serper"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerplexityRate is the flat per-request fee on top of tokens.
type PerplexityRate struct {
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// SerperRate is the per-query search price.
type SerperRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Usage is the token consumption of one model call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates o into u.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Calculator computes costs for API usage. It is read-only after
// construction and safe for concurrent use.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Model computes the token cost of one call. Unknown models cost 0.
func (c *Calculator) Model(model string, u Usage) float64 {
	rate, ok := c.rates.Models[model]
	if !ok {
		return 0
	}
	return (float64(u.InputTokens)/1e6)*rate.Input + (float64(u.OutputTokens)/1e6)*rate.Output
}

// PerplexityRequest returns the flat per-request Perplexity fee.
func (c *Calculator) PerplexityRequest() float64 {
	return c.rates.Perplexity.PerRequest
}

// SerperQueries returns the cost of n search queries.
func (c *Calculator) SerperQueries(n int) float64 {
	return float64(n) * c.rates.Serper.PerQuery
}

// Log records a cost attribution line for one call and returns its cost.
func (c *Calculator) Log(provider, model, role string, u Usage) float64 {
	usd := c.Model(model, u)
	zap.L().Info("cost attribution",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("role", role),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", usd),
	)
	return usd
}

// DefaultRates returns list prices for the default role models.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-3-7-sonnet-20250219": {Input: 3.00, Output: 15.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-3-5-haiku-20241022":  {Input: 0.80, Output: 4.00},
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"gpt-5":                      {Input: 1.25, Output: 10.00},
			"gpt-5-mini":                 {Input: 0.25, Output: 2.00},
			"gpt-4o":                     {Input: 2.50, Output: 10.00},
			"gemini-2.5-pro":             {Input: 1.25, Output: 10.00},
			"gemini-2.5-flash":           {Input: 0.30, Output: 2.50},
			"sonar-pro":                  {Input: 3.00, Output: 15.00},
			"sonar":                      {Input: 1.00, Output: 1.00},
		},
		Perplexity: PerplexityRate{PerRequest: 0.005},
		Serper:     SerperRate{PerQuery: 0.001},
	}
}
