package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable indicates the model backend could not serve the call.
var ErrUnavailable = errors.New("model provider unavailable")

// Message represents one conversation turn sent to the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Tool describes a callable tool offered to the model. InputSchema is
// a JSON Schema object.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Request contains the parameters for one model call.
type Request struct {
	Model        string
	Messages     []Message
	Tools        []Tool
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response contains the model's reply.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

// Provider is a chat-completion backend.
type Provider interface {
	Chat(ctx context.Context, request Request) (*Response, error)
	Provider() string
}

// New creates a provider by name.
func New(provider, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s provider requires an API key", provider)
	}

	switch provider {
	case "openai":
		return NewOpenAI(apiKey), nil
	case "anthropic":
		return NewAnthropic(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// IsRetryable reports whether a model call error is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}
