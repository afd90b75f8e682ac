// Package llm routes model calls to the right hosted provider and enforces
// structured output contracts on the replies.
package llm

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Provider names a hosted model API.
type Provider string

const (
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenAI     Provider = "openai"
	ProviderGemini     Provider = "gemini"
	ProviderPerplexity Provider = "perplexity"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderPerplexity}

// ModelRef is a model identifier resolved to its provider.
type ModelRef struct {
	Provider Provider
	Name     string
}

func (m ModelRef) String() string {
	if m.Provider == "" {
		return m.Name
	}
	return string(m.Provider) + "/" + m.Name
}

// Reasoning reports whether the model spends hidden reasoning tokens before
// answering. OpenAI reasoning models reject temperature and top_p; Gemini
// thinking models count their thoughts against the output token cap.
func (m ModelRef) Reasoning() bool {
	name := strings.ToLower(m.Name)
	switch m.Provider {
	case ProviderOpenAI:
		if strings.HasPrefix(name, "gpt-5-chat") {
			return false
		}
		for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		}
	case ProviderGemini:
		return strings.HasPrefix(name, "gemini-2.5") || strings.HasPrefix(name, "gemini-3")
	}
	return false
}

// IsZero reports whether the reference is unset.
func (m ModelRef) IsZero() bool {
	return m.Provider == "" && m.Name == ""
}

// ParseModel resolves a model identifier. It accepts an explicit
// "provider/model" form or infers the provider from the model family.
func ParseModel(id string) (ModelRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ModelRef{}, eris.New("llm: empty model identifier")
	}

	if p, name, ok := strings.Cut(id, "/"); ok {
		for _, known := range Providers {
			if strings.EqualFold(p, string(known)) {
				if name == "" {
					return ModelRef{}, eris.Errorf("llm: missing model name in %q", id)
				}
				return ModelRef{Provider: known, Name: name}, nil
			}
		}
		return ModelRef{}, eris.Errorf("llm: unsupported provider %q", p)
	}

	lower := strings.ToLower(id)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return ModelRef{Provider: ProviderAnthropic, Name: id}, nil
	case strings.HasPrefix(lower, "gpt"),
		strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"),
		strings.HasPrefix(lower, "o4"):
		return ModelRef{Provider: ProviderOpenAI, Name: id}, nil
	case strings.HasPrefix(lower, "gemini"):
		return ModelRef{Provider: ProviderGemini, Name: id}, nil
	case strings.HasPrefix(lower, "sonar"):
		return ModelRef{Provider: ProviderPerplexity, Name: id}, nil
	}
	return ModelRef{}, eris.Errorf("llm: unsupported model %q", id)
}
