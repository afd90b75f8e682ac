package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fightcard/internal/cost"
	"github.com/sells-group/fightcard/internal/model"
	"github.com/sells-group/fightcard/internal/resilience"
	"github.com/sells-group/fightcard/pkg/anthropic"
	"github.com/sells-group/fightcard/pkg/gemini"
	"github.com/sells-group/fightcard/pkg/openai"
	"github.com/sells-group/fightcard/pkg/perplexity"
)

const (
	defaultMaxTokens      = 8192
	defaultThinkingBudget = 4096
)

// Call is one model invocation.
type Call struct {
	Model ModelRef
	// Role drives cost attribution and a few provider hints.
	Role        model.Role
	System      string
	Prompt      string
	Temperature float64
	TopP        *float64
	MaxTokens   int64
}

// Result is the outcome of a successful call.
type Result struct {
	Text    string
	Usage   cost.Usage
	CostUSD float64
}

// Invoker executes model calls. Credentials passed per call override the
// invoker's process-wide keys.
type Invoker interface {
	Text(ctx context.Context, call Call, creds model.Credentials) (*Result, error)
	Structured(ctx context.Context, call Call, schema *Schema, creds model.Credentials, out any) (*Result, error)
}

// Clients builds provider clients for an API key.
type Clients struct {
	Anthropic  func(key string) anthropic.Client
	OpenAI     func(key string) openai.Client
	Gemini     func(ctx context.Context, key string) (gemini.Client, error)
	Perplexity func(key string) perplexity.Client
}

// BaseURLs overrides provider API hosts. Empty values keep the defaults.
type BaseURLs struct {
	Anthropic  string
	OpenAI     string
	Gemini     string
	Perplexity string
}

// DefaultClients returns factories for the real provider clients.
func DefaultClients(urls BaseURLs) Clients {
	return Clients{
		Anthropic: func(key string) anthropic.Client {
			var opts []anthropic.Option
			if urls.Anthropic != "" {
				opts = append(opts, anthropic.WithBaseURL(urls.Anthropic))
			}
			return anthropic.NewClient(key, opts...)
		},
		OpenAI: func(key string) openai.Client {
			var opts []openai.Option
			if urls.OpenAI != "" {
				opts = append(opts, openai.WithBaseURL(urls.OpenAI))
			}
			return openai.NewClient(key, opts...)
		},
		Gemini: func(ctx context.Context, key string) (gemini.Client, error) {
			var opts []gemini.Option
			if urls.Gemini != "" {
				opts = append(opts, gemini.WithBaseURL(urls.Gemini))
			}
			return gemini.NewClient(ctx, key, opts...)
		},
		Perplexity: func(key string) perplexity.Client {
			var opts []perplexity.Option
			if urls.Perplexity != "" {
				opts = append(opts, perplexity.WithBaseURL(urls.Perplexity))
			}
			return perplexity.NewClient(key, opts...)
		},
	}
}

// RouterConfig configures a Router.
type RouterConfig struct {
	Credentials       model.Credentials
	MaxTokens         int64
	RequestsPerSecond float64
	Burst             int
	Retry             resilience.RetryConfig
	Breaker           resilience.BreakerConfig
	Rates             cost.Rates
	Clients           Clients
	// GeminiThinkingBudget caps Gemini thinking tokens. They are added on
	// top of MaxTokens so thoughts cannot starve the answer.
	GeminiThinkingBudget int32
}

// Router implements Invoker by dispatching each call to its provider
// through a rate limiter, a circuit breaker and retry.
type Router struct {
	creds          model.Credentials
	maxTokens      int64
	thinkingBudget int32
	retry          resilience.RetryConfig
	limiters       map[Provider]*rate.Limiter
	breakers       *resilience.Breakers
	calc           *cost.Calculator
	factories      Clients

	mu      sync.Mutex
	clients map[string]any

	// samplingNoted records reasoning models already logged as ignoring
	// temperature and top_p.
	samplingNoted sync.Map
}

// NewRouter creates a Router. Missing client factories fall back to the
// real provider clients.
func NewRouter(cfg RouterConfig) *Router {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiters := make(map[Provider]*rate.Limiter, len(Providers))
	for _, p := range Providers {
		limiters[p] = rate.NewLimiter(limit, burst)
	}

	factories := cfg.Clients
	def := DefaultClients(BaseURLs{})
	if factories.Anthropic == nil {
		factories.Anthropic = def.Anthropic
	}
	if factories.OpenAI == nil {
		factories.OpenAI = def.OpenAI
	}
	if factories.Gemini == nil {
		factories.Gemini = def.Gemini
	}
	if factories.Perplexity == nil {
		factories.Perplexity = def.Perplexity
	}

	thinking := cfg.GeminiThinkingBudget
	if thinking <= 0 {
		thinking = defaultThinkingBudget
	}

	rates := cfg.Rates
	if rates.Models == nil {
		rates = cost.DefaultRates()
	}

	return &Router{
		creds:          cfg.Credentials,
		maxTokens:      maxTokens,
		thinkingBudget: thinking,
		retry:          cfg.Retry,
		limiters:       limiters,
		breakers:       resilience.NewBreakers(cfg.Breaker),
		calc:           cost.NewCalculator(rates),
		factories:      factories,
		clients:        make(map[string]any),
	}
}

// Text runs a free-text call.
func (r *Router) Text(ctx context.Context, call Call, creds model.Credentials) (*Result, error) {
	res, err := r.invoke(ctx, call, nil, creds)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, &InvocationError{Kind: KindProvider, Provider: call.Model.Provider, Model: call.Model.Name, Err: ErrEmptyReply}
	}
	return res, nil
}

// Structured runs a call whose reply must satisfy schema and decodes it
// into out.
func (r *Router) Structured(ctx context.Context, call Call, schema *Schema, creds model.Credentials, out any) (*Result, error) {
	if schema == nil {
		return nil, &InvocationError{Kind: KindConfig, Provider: call.Model.Provider, Model: call.Model.Name, Err: eris.New("nil schema")}
	}
	res, err := r.invoke(ctx, call, schema, creds)
	if err != nil {
		return nil, err
	}
	if err := schema.Decode(res.Text, out); err != nil {
		return res, &InvocationError{Kind: KindSchemaViolation, Provider: call.Model.Provider, Model: call.Model.Name, Err: err}
	}
	return res, nil
}

func (r *Router) invoke(ctx context.Context, call Call, schema *Schema, creds model.Credentials) (*Result, error) {
	ref := call.Model
	limiter, ok := r.limiters[ref.Provider]
	if !ok {
		return nil, &InvocationError{Kind: KindConfig, Provider: ref.Provider, Model: ref.Name, Err: eris.Errorf("unsupported provider %q", ref.Provider)}
	}

	key := apiKey(ref.Provider, creds.Merge(r.creds))
	if key == "" {
		return nil, &InvocationError{Kind: KindAuth, Provider: ref.Provider, Model: ref.Name, Err: ErrMissingCredential}
	}

	if call.MaxTokens <= 0 {
		call.MaxTokens = r.maxTokens
	}

	zap.L().Debug("model call",
		zap.String("provider", string(ref.Provider)),
		zap.String("model", ref.Name),
		zap.String("role", string(call.Role)),
		zap.Bool("structured", schema != nil),
	)

	retryCfg := r.retry
	retryCfg.OnRetry = resilience.RetryLogger(string(ref.Provider), ref.Name)
	// One breaker per credential: a key that is throttled or revoked must not
	// trip calls made with other keys.
	breaker := r.breakers.Get(string(ref.Provider) + "/" + keyFingerprint(key))

	res, err := resilience.Retry(ctx, retryCfg, func(ctx context.Context) (*Result, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, classify(ref, err)
		}
		return resilience.Guard(ctx, breaker, func(ctx context.Context) (*Result, error) {
			res, err := r.send(ctx, call, schema, key)
			if err != nil {
				return nil, classify(ref, err)
			}
			return res, nil
		})
	})
	if err != nil {
		return nil, classify(ref, err)
	}

	res.CostUSD = r.calc.Log(string(ref.Provider), ref.Name, string(call.Role), res.Usage)
	if ref.Provider == ProviderPerplexity {
		res.CostUSD += r.calc.PerplexityRequest()
	}
	return res, nil
}

func (r *Router) send(ctx context.Context, call Call, schema *Schema, key string) (*Result, error) {
	temp := call.Temperature
	switch call.Model.Provider {
	case ProviderAnthropic:
		system := call.System
		if schema != nil {
			system = joinPrompt(system, schema.Instructions())
		}
		resp, err := r.anthropic(key).CreateMessage(ctx, anthropic.MessageRequest{
			Model:       call.Model.Name,
			MaxTokens:   call.MaxTokens,
			System:      system,
			Messages:    []anthropic.Message{{Role: "user", Content: call.Prompt}},
			Temperature: &temp,
			TopP:        call.TopP,
		})
		if err != nil {
			return nil, err
		}
		return &Result{
			Text:  resp.Text(),
			Usage: cost.Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
		}, nil

	case ProviderOpenAI:
		maxTokens := call.MaxTokens
		req := openai.ChatCompletionRequest{
			Model:               call.Model.Name,
			Messages:            openaiMessages(call.System, call.Prompt),
			MaxCompletionTokens: &maxTokens,
		}
		if call.Model.Reasoning() {
			r.noteSamplingIgnored(call)
		} else {
			req.Temperature = &temp
			req.TopP = call.TopP
		}
		if schema != nil {
			req.ResponseSchema = &openai.JSONSchema{Name: schema.Name, Schema: schema.JSON()}
		}
		resp, err := r.openai(key).ChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Result{
			Text:  resp.Content(),
			Usage: cost.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
		}, nil

	case ProviderGemini:
		client, err := r.gemini(ctx, key)
		if err != nil {
			return nil, &InvocationError{Kind: KindConfig, Provider: ProviderGemini, Model: call.Model.Name, Err: err}
		}
		maxOut := call.MaxTokens
		var budget *int32
		if call.Model.Reasoning() {
			b := r.thinkingBudget
			budget = &b
			maxOut += int64(b)
		}
		req := gemini.GenerateRequest{
			Model:           call.Model.Name,
			System:          call.System,
			Prompt:          call.Prompt,
			Temperature:     &temp,
			TopP:            call.TopP,
			MaxOutputTokens: int32(min(maxOut, int64(math.MaxInt32))),
			ThinkingBudget:  budget,
		}
		if schema != nil {
			req.ResponseSchema = gemini.SchemaFromJSON(schema.Doc())
		}
		resp, err := client.GenerateContent(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Result{
			Text:  resp.Text,
			Usage: cost.Usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens},
		}, nil

	case ProviderPerplexity:
		system := call.System
		if schema != nil {
			system = joinPrompt(system, schema.Instructions())
		}
		maxTokens := call.MaxTokens
		req := perplexity.ChatCompletionRequest{
			Model:       call.Model.Name,
			Messages:    perplexityMessages(system, call.Prompt),
			Temperature: &temp,
			TopP:        call.TopP,
			MaxTokens:   &maxTokens,
		}
		// News and weigh-ins go stale within days.
		if call.Role == model.RoleNewsWeighins {
			req.SearchRecencyFilter = "week"
		}
		resp, err := r.perplexity(key).ChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		text := resp.Content()
		if schema == nil && text != "" && len(resp.Citations) > 0 {
			text += "\n\nSources:\n- " + strings.Join(resp.Citations, "\n- ")
		}
		return &Result{
			Text:  text,
			Usage: cost.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
		}, nil
	}
	return nil, &InvocationError{Kind: KindConfig, Provider: call.Model.Provider, Model: call.Model.Name, Err: eris.New("unsupported provider")}
}

// noteSamplingIgnored logs, once per model, that the role's temperature and
// top_p are not sent.
func (r *Router) noteSamplingIgnored(call Call) {
	if _, seen := r.samplingNoted.LoadOrStore(call.Model.Name, true); seen {
		return
	}
	zap.L().Info("llm: reasoning model ignores temperature and top_p",
		zap.String("model", call.Model.String()),
		zap.String("role", string(call.Role)),
	)
}

func (r *Router) anthropic(key string) anthropic.Client {
	return cached(r, ProviderAnthropic, key, r.factories.Anthropic)
}

func (r *Router) openai(key string) openai.Client {
	return cached(r, ProviderOpenAI, key, r.factories.OpenAI)
}

func (r *Router) perplexity(key string) perplexity.Client {
	return cached(r, ProviderPerplexity, key, r.factories.Perplexity)
}

func (r *Router) gemini(ctx context.Context, key string) (gemini.Client, error) {
	id := string(ProviderGemini) + "\x00" + key
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c.(gemini.Client), nil
	}
	c, err := r.factories.Gemini(ctx, key)
	if err != nil {
		return nil, err
	}
	r.clients[id] = c
	return c, nil
}

// cached returns the client for (p, key), building it on first use so
// per-request keys do not churn connection pools.
func cached[C any](r *Router, p Provider, key string, build func(string) C) C {
	id := string(p) + "\x00" + key
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c.(C)
	}
	c := build(key)
	r.clients[id] = c
	return c
}

// keyFingerprint identifies a credential in breaker names and logs without
// revealing it.
func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}

func openaiMessages(system, prompt string) []openai.Message {
	var msgs []openai.Message
	if system != "" {
		msgs = append(msgs, openai.Message{Role: "system", Content: system})
	}
	return append(msgs, openai.Message{Role: "user", Content: prompt})
}

func perplexityMessages(system, prompt string) []perplexity.Message {
	var msgs []perplexity.Message
	if system != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: system})
	}
	return append(msgs, perplexity.Message{Role: "user", Content: prompt})
}

func joinPrompt(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func apiKey(p Provider, creds model.Credentials) string {
	switch p {
	case ProviderAnthropic:
		return creds.Anthropic
	case ProviderOpenAI:
		return creds.OpenAI
	case ProviderGemini:
		return creds.Google
	case ProviderPerplexity:
		return creds.Perplexity
	}
	return ""
}

var _ Invoker = (*Router)(nil)
