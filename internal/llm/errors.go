package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fightcard/internal/resilience"
	"github.com/sells-group/fightcard/pkg/anthropic"
	"github.com/sells-group/fightcard/pkg/gemini"
	"github.com/sells-group/fightcard/pkg/openai"
	"github.com/sells-group/fightcard/pkg/perplexity"
)

// Kind classifies an invocation failure.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindAuth            Kind = "auth"
	KindRateLimit       Kind = "rate_limit"
	KindProvider        Kind = "provider"
	KindSchemaViolation Kind = "schema_violation"
	KindConfig          Kind = "config"
)

var (
	// ErrMissingCredential is returned before any I/O when no key is known
	// for the call's provider.
	ErrMissingCredential = eris.New("missing credential")

	// ErrSchemaViolation marks a reply that is not valid JSON or does not
	// satisfy the requested schema.
	ErrSchemaViolation = eris.New("reply does not satisfy schema")

	// ErrEmptyReply marks a reply with no text.
	ErrEmptyReply = eris.New("empty reply")
)

// InvocationError describes a failed model call.
type InvocationError struct {
	Kind     Kind
	Provider Provider
	Model    string
	// Status is the HTTP status reported by the provider, or 0.
	Status int
	Err    error
}

func (e *InvocationError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: %s error (status %d): %v", e.Provider, e.Model, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %s error: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the call may succeed.
func (e *InvocationError) Temporary() bool {
	switch e.Kind {
	case KindRateLimit:
		return true
	case KindNetwork:
		return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	case KindProvider:
		return resilience.IsTransientStatus(e.Status) || (e.Status == 0 && resilience.IsTransient(e.Err))
	}
	return false
}

// KindOf returns the kind of the first InvocationError in err's chain.
func KindOf(err error) (Kind, bool) {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}

// classify turns a provider client error into an InvocationError.
func classify(ref ModelRef, err error) *InvocationError {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie
	}

	status := statusOf(ref.Provider, err)
	out := &InvocationError{Provider: ref.Provider, Model: ref.Name, Status: status, Err: err}
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		out.Kind = KindProvider
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		out.Kind = KindAuth
	case status == http.StatusTooManyRequests:
		out.Kind = KindRateLimit
	case status > 0:
		out.Kind = KindProvider
	default:
		// No status means the request never got a reply.
		out.Kind = KindNetwork
	}
	return out
}

func statusOf(p Provider, err error) int {
	switch p {
	case ProviderAnthropic:
		return anthropic.StatusCode(err)
	case ProviderGemini:
		return gemini.StatusCode(err)
	case ProviderOpenAI:
		return openai.StatusCode(err)
	case ProviderPerplexity:
		var apiErr *perplexity.APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode
		}
	}
	return 0
}
