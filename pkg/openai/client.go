// Package openai wraps the official OpenAI Go SDK behind the chat completion
// call the card pipeline needs.
package openai

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rotisserie/eris"
)

// Client performs chat completions against the OpenAI API.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ChatCompletionRequest is our own request type for ChatCompletion. Nil
// sampling fields are left out of the request.
type ChatCompletionRequest struct {
	Model               string
	Messages            []Message
	Temperature         *float64
	TopP                *float64
	MaxCompletionTokens *int64
	// ResponseSchema, when set, constrains the reply to the JSON schema.
	ResponseSchema *JSONSchema
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// JSONSchema names a JSON schema for structured output.
type JSONSchema struct {
	Name   string
	Schema json.RawMessage
	Strict bool
}

// ChatCompletionResponse is our own response type from ChatCompletion.
type ChatCompletionResponse struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

// Content returns the first choice's message text.
func (r *ChatCompletionResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice is a single completion choice.
type Choice struct {
	Index        int64
	Message      Message
	FinishReason string
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Option configures the SDK client.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithBaseURL(url))
	}
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates an OpenAI client backed by the SDK. SDK-level retries
// are disabled; callers own the retry policy.
func NewClient(apiKey string, opts ...Option) Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &sdkClient{client: sdk.NewClient(reqOpts...)}
}

func (c *sdkClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(req.Model),
		Messages: toSDKMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdk.Float(*req.TopP)
	}
	if req.MaxCompletionTokens != nil {
		params.MaxCompletionTokens = sdk.Int(*req.MaxCompletionTokens)
	}
	if s := req.ResponseSchema; s != nil {
		schema := sdk.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   s.Name,
			Schema: s.Schema,
		}
		if s.Strict {
			schema.Strict = sdk.Bool(true)
		}
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &sdk.ResponseFormatJSONSchemaParam{JSONSchema: schema},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "openai: create chat completion")
	}
	return fromSDKCompletion(resp), nil
}

// StatusCode extracts the HTTP status from an SDK error chain, or 0.
func StatusCode(err error) int {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func toSDKMessages(msgs []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case "system":
			out[i] = sdk.SystemMessage(m.Content)
		case "assistant":
			out[i] = sdk.AssistantMessage(m.Content)
		default:
			out[i] = sdk.UserMessage(m.Content)
		}
	}
	return out
}

func fromSDKCompletion(c *sdk.ChatCompletion) *ChatCompletionResponse {
	choices := make([]Choice, 0, len(c.Choices))
	for _, ch := range c.Choices {
		choices = append(choices, Choice{
			Index:        ch.Index,
			Message:      Message{Role: string(ch.Message.Role), Content: ch.Message.Content},
			FinishReason: ch.FinishReason,
		})
	}
	return &ChatCompletionResponse{
		ID:      c.ID,
		Model:   c.Model,
		Choices: choices,
		Usage: Usage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
		},
	}
}
