package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/fightcard/internal/cost"
	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig           `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig              `yaml:"openai" mapstructure:"openai"`
	Gemini     GeminiConfig              `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityConfig          `yaml:"perplexity" mapstructure:"perplexity"`
	Serper     SerperConfig              `yaml:"serper" mapstructure:"serper"`
	Telegram   TelegramConfig            `yaml:"telegram" mapstructure:"telegram"`
	LLM        LLMConfig                 `yaml:"llm" mapstructure:"llm"`
	Pipeline   PipelineConfig            `yaml:"pipeline" mapstructure:"pipeline"`
	Roles      model.PerRole[RoleConfig] `yaml:"roles" mapstructure:"roles"`
	Pricing    cost.Rates                `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig              `yaml:"server" mapstructure:"server"`
	Log        LogConfig                 `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerperConfig holds Serper web search settings.
type SerperConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TelegramConfig configures publishing picks to a Telegram chat.
type TelegramConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	ChatID int64  `yaml:"chat_id" mapstructure:"chat_id"`
}

// LLMConfig configures every outbound model call.
type LLMConfig struct {
	MaxTokens         int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	Retry             RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit           CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
	// GeminiThinkingBudget caps thinking tokens on Gemini models that think.
	GeminiThinkingBudget int32 `yaml:"gemini_thinking_budget" mapstructure:"gemini_thinking_budget"`
}

// RetryConfig configures retry of transient provider failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the per-provider circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	// FailOnEmpty turns a judge result with zero predictions into an error.
	FailOnEmpty       bool   `yaml:"fail_on_empty" mapstructure:"fail_on_empty"`
	SearchResults     int    `yaml:"search_results" mapstructure:"search_results"`
	SearchConcurrency int    `yaml:"search_concurrency" mapstructure:"search_concurrency"`
	SearchTimeRange   string `yaml:"search_time_range" mapstructure:"search_time_range"`
}

// RoleConfig is the process-wide default for one pipeline role.
type RoleConfig struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TopP        float64 `yaml:"top_p" mapstructure:"top_p"`
	// Prompt replaces the built-in system prompt when set.
	Prompt string `yaml:"prompt" mapstructure:"prompt"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// roleDefaults mirrors the tuned per-role model table.
var roleDefaults = map[model.Role]RoleConfig{
	model.RoleTapeStudy:          {Model: "claude-3-7-sonnet-20250219", Temperature: 0.2, TopP: 0.9},
	model.RoleStatsTrends:        {Model: "gpt-5", Temperature: 0.1, TopP: 0.9},
	model.RoleNewsWeighins:       {Model: "gemini-2.5-pro", Temperature: 0.1, TopP: 0.9},
	model.RoleStyleMatchup:       {Model: "claude-3-7-sonnet-20250219", Temperature: 0.2, TopP: 0.9},
	model.RoleMarketOdds:         {Model: "gpt-5-mini", Temperature: 0.0, TopP: 0.8},
	model.RoleJudge:              {Model: "gpt-5", Temperature: 0.0, TopP: 0.5},
	model.RoleRiskScorer:         {Model: "gpt-5-mini", Temperature: 0.0, TopP: 0.8},
	model.RoleConsistencyChecker: {Model: "claude-3-5-haiku-20241022", Temperature: 0.05, TopP: 0.7},
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, eris.Wrap(err, "config: load .env")
		}
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIGHTCARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional provider variables, FIGHTCARD_* wins when both are set.
	for key, env := range map[string]string{
		"anthropic.key":  "ANTHROPIC_API_KEY",
		"openai.key":     "OPENAI_API_KEY",
		"gemini.key":     "GOOGLE_API_KEY",
		"perplexity.key": "PERPLEXITY_API_KEY",
		"serper.key":     "SERPER_API_KEY",
		"telegram.token": "TELEGRAM_BOT_TOKEN",
	} {
		prefixed := "FIGHTCARD_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.mergeModelRates()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.gemini_thinking_budget", 4096)
	v.SetDefault("llm.requests_per_second", 5)
	v.SetDefault("llm.burst", 5)
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.initial_backoff_ms", 750)
	v.SetDefault("llm.retry.max_backoff_ms", 20000)
	v.SetDefault("llm.circuit.failure_threshold", 5)
	v.SetDefault("llm.circuit.reset_timeout_secs", 30)
	v.SetDefault("pipeline.fail_on_empty", false)
	v.SetDefault("pipeline.search_results", 5)
	v.SetDefault("pipeline.search_concurrency", 4)
	v.SetDefault("pipeline.search_time_range", "qdr:w")

	for r, d := range roleDefaults {
		prefix := "roles." + string(r) + "."
		v.SetDefault(prefix+"model", d.Model)
		v.SetDefault(prefix+"temperature", d.Temperature)
		v.SetDefault(prefix+"top_p", d.TopP)
		v.SetDefault(prefix+"prompt", "")
	}

	rates := cost.DefaultRates()
	v.SetDefault("pricing.perplexity.per_request", rates.Perplexity.PerRequest)
	v.SetDefault("pricing.serper.per_query", rates.Serper.PerQuery)
}

// mergeModelRates fills in built-in prices for models the config file does
// not mention. Model names contain dots, so they cannot be viper defaults.
func (c *Config) mergeModelRates() {
	if c.Pricing.Models == nil {
		c.Pricing.Models = make(map[string]cost.ModelRate)
	}
	for name, r := range cost.DefaultRates().Models {
		if _, ok := c.Pricing.Models[name]; !ok {
			c.Pricing.Models[name] = r
		}
	}
}

// Credentials returns the provider keys known to the process.
func (c *Config) Credentials() model.Credentials {
	return model.Credentials{
		Anthropic:  c.Anthropic.Key,
		OpenAI:     c.OpenAI.Key,
		Google:     c.Gemini.Key,
		Perplexity: c.Perplexity.Key,
		Serper:     c.Serper.Key,
	}
}

// RoleModels resolves every role's default model once, so an unsupported
// provider fails at startup rather than mid-run.
func (c *Config) RoleModels() (model.PerRole[llm.ModelRef], error) {
	var out model.PerRole[llm.ModelRef]
	for _, r := range model.AllRoles {
		ref, err := llm.ParseModel(c.Roles.Get(r).Model)
		if err != nil {
			return out, eris.Wrapf(err, "config: roles.%s.model", r)
		}
		out.Set(r, ref)
	}
	return out, nil
}

// Validate checks cross-field constraints after Load.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "llm.max_tokens must be positive")
	}
	if c.LLM.GeminiThinkingBudget < 0 {
		problems = append(problems, "llm.gemini_thinking_budget must not be negative")
	}
	if c.LLM.RequestsPerSecond < 0 {
		problems = append(problems, "llm.requests_per_second must not be negative")
	}
	if c.Pipeline.SearchResults < 0 || c.Pipeline.SearchConcurrency < 0 {
		problems = append(problems, "pipeline search settings must not be negative")
	}
	for _, r := range model.AllRoles {
		rc := c.Roles.Get(r)
		if rc.Temperature < 0 || rc.Temperature > 2 {
			problems = append(problems, "roles."+string(r)+".temperature must be in [0, 2]")
		}
		if rc.TopP <= 0 || rc.TopP > 1 {
			problems = append(problems, "roles."+string(r)+".top_p must be in (0, 1]")
		}
	}
	if _, err := c.RoleModels(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
