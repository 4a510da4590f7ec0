package llm

import (
	"context"

	"chatgraph-backend/internal/domain"
)

// Request contains one model invocation over a conversation history
type Request struct {
	Messages []domain.Message
	Tools    []ToolDefinition
	Model    string
}

// ToolDefinition describes a callable tool to the model
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response is the model's answer to one invocation. Exactly one variant is
// populated: Text for a final answer, ToolCalls for a tool request.
type Response struct {
	Text       string
	ToolCalls  []domain.ToolCall
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// IsToolRequest reports whether the model asked for tool execution
func (r *Response) IsToolRequest() bool {
	return len(r.ToolCalls) > 0
}

// StreamFunc receives incremental chunks of final-answer text
type StreamFunc func(delta string)

// Provider defines the interface for chat model providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Chat runs one model invocation over the history
	Chat(ctx context.Context, req Request) (*Response, error)

	// ChatStream runs one model invocation, delivering final-answer text
	// incrementally through onDelta. Tool-call responses arrive whole in
	// the returned Response; onDelta is only called for text.
	ChatStream(ctx context.Context, req Request, onDelta StreamFunc) (*Response, error)
}
