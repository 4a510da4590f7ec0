// Package engine runs the assistant-tool loop for one conversation turn.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/llm"
	"chatgraph-backend/internal/tools"

	"github.com/rs/zerolog/log"
)

// DefaultMaxIterations bounds the assistant-tool loop per turn
const DefaultMaxIterations = 5

// Engine drives one conversation turn: it invokes the model over the
// history, executes requested tools, feeds results back, and repeats until
// the model returns a final answer or the iteration cap is hit.
type Engine struct {
	provider      llm.Provider
	registry      *tools.Registry
	model         string
	maxIterations int
}

// Option configures the engine
type Option func(*Engine)

// WithModel overrides the provider's default model
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithMaxIterations overrides the tool-loop iteration cap
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// New creates a turn engine
func New(provider llm.Provider, registry *tools.Registry, opts ...Option) *Engine {
	e := &Engine{
		provider:      provider,
		registry:      registry,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one turn over the given history (which already ends with the
// new user message) and returns the messages the turn produced: zero or more
// tool messages followed by exactly one assistant message. A nil sink selects
// the provider's non-streaming call. Model and tool failures are recovered
// into message content; the returned error is reserved for context
// cancellation.
func (e *Engine) Run(ctx context.Context, history []domain.Message, sink Sink) ([]domain.Message, error) {
	working := make([]domain.Message, len(history))
	copy(working, history)

	var produced []domain.Message

	for i := 0; i < e.maxIterations; i++ {
		resp, err := e.invoke(ctx, llm.Request{
			Messages: working,
			Tools:    e.toolDefinitions(),
			Model:    e.model,
		}, sink)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Int("iteration", i+1).Msg("model invocation failed")
			msg := assistantMessage(fmt.Sprintf("Error generating response: %s", err))
			publish(sink, Event{Type: EventDelta, Delta: msg.Content})
			return append(produced, msg), nil
		}

		if !resp.IsToolRequest() {
			return append(produced, assistantMessage(resp.Text)), nil
		}

		// Keep the tool request in the working transcript so the provider
		// can correlate the results on the next invocation.
		working = append(working, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
			CreatedAt: time.Now(),
		})

		// Requested tools run sequentially, in request order.
		for _, call := range resp.ToolCalls {
			publish(sink, Event{Type: EventTool, ToolName: call.Name})

			toolMsg := domain.Message{
				Role:       domain.RoleTool,
				ToolName:   call.Name,
				ToolCallID: call.ID,
				Content:    e.executeTool(ctx, call),
				CreatedAt:  time.Now(),
			}
			produced = append(produced, toolMsg)
			working = append(working, toolMsg)
		}
	}

	log.Warn().Int("max_iterations", e.maxIterations).Msg("tool loop iteration cap reached")
	msg := assistantMessage(fmt.Sprintf("Stopped after %d tool calls without reaching an answer.", e.maxIterations))
	publish(sink, Event{Type: EventDelta, Delta: msg.Content})
	return append(produced, msg), nil
}

// invoke runs one model call, streaming text deltas when a sink is attached
func (e *Engine) invoke(ctx context.Context, req llm.Request, sink Sink) (*llm.Response, error) {
	if sink == nil {
		return e.provider.Chat(ctx, req)
	}
	return e.provider.ChatStream(ctx, req, func(delta string) {
		publish(sink, Event{Type: EventDelta, Delta: delta})
	})
}

// executeTool dispatches one tool call and stringifies its result. Failures
// become an {"error": ...} payload, never an engine failure.
func (e *Engine) executeTool(ctx context.Context, call domain.ToolCall) string {
	tool, err := e.registry.Get(call.Name)
	if err != nil {
		return errorPayload(err.Error())
	}

	out, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		log.Error().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		return errorPayload(fmt.Sprintf("%s failed: %s", call.Name, err))
	}

	if s, ok := out.(string); ok {
		return s
	}
	b, err := json.Marshal(out)
	if err != nil {
		return errorPayload(fmt.Sprintf("failed to encode %s result: %s", call.Name, err))
	}
	return string(b)
}

func (e *Engine) toolDefinitions() []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	for _, t := range e.registry.List() {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

func assistantMessage(content string) domain.Message {
	return domain.Message{
		Role:      domain.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

func publish(sink Sink, e Event) {
	if sink != nil {
		sink.Publish(e)
	}
}
