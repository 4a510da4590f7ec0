// Package openaicompat implements llm.Provider for every endpoint speaking
// the OpenAI chat-completions protocol (OpenAI itself, Groq, and friends).
package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/llm"

	go_openai "github.com/sashabaranov/go-openai"
)

// Provider implements llm.Provider over an OpenAI-compatible API
type Provider struct {
	name         string
	apiKey       string
	defaultModel string
	models       []string
	client       *go_openai.Client
}

// NewProvider creates a provider for the given OpenAI-compatible endpoint.
// An empty baseURL targets api.openai.com.
func NewProvider(name, baseURL, apiKey, defaultModel string, models []string) *Provider {
	cfg := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Provider{
		name:         name,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		models:       models,
		client:       go_openai.NewClientWithConfig(cfg),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return p.name
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return p.models
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Chat runs one model invocation over the history
func (p *Provider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%s provider is not configured (missing API key)", p.name)
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, buildRequest(req, p.defaultModel))
	if err != nil {
		return nil, fmt.Errorf("%s completion error: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from %s", p.name)
	}

	choice := resp.Choices[0]
	return &llm.Response{
		Text:       choice.Message.Content,
		ToolCalls:  convertToolCalls(choice.Message.ToolCalls),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// ChatStream runs one model invocation, streaming final-answer text chunks
func (p *Provider) ChatStream(ctx context.Context, req llm.Request, onDelta llm.StreamFunc) (*llm.Response, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%s provider is not configured (missing API key)", p.name)
	}

	start := time.Now()
	stream, err := p.client.CreateChatCompletionStream(ctx, buildRequest(req, p.defaultModel))
	if err != nil {
		return nil, fmt.Errorf("%s stream error: %w", p.name, err)
	}
	defer stream.Close()

	var text string
	merger := newToolCallMerger()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s stream receive error: %w", p.name, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			text += delta.Content
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}
		if len(delta.ToolCalls) > 0 {
			merger.add(delta.ToolCalls)
		}
	}

	return &llm.Response{
		Text:      text,
		ToolCalls: convertToolCalls(merger.merged()),
		Model:     req.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func buildRequest(req llm.Request, defaultModel string) go_openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	messages := make([]go_openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleSystem,
		Content: llm.BuildSystemPrompt(req.Tools),
	})

	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleUser:
			messages = append(messages, go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		case domain.RoleAssistant:
			am := go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				am.ToolCalls = append(am.ToolCalls, go_openai.ToolCall{
					ID:   tc.ID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, am)
		case domain.RoleTool:
			messages = append(messages, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    m.Content,
				Name:       m.ToolName,
				ToolCallID: m.ToolCallID,
			})
		}
	}

	var toolDefs []go_openai.Tool
	for _, t := range req.Tools {
		toolDefs = append(toolDefs, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: go_openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    toolDefs,
	}
}

func convertToolCalls(calls []go_openai.ToolCall) []domain.ToolCall {
	var out []domain.ToolCall
	for _, tc := range calls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// Malformed arguments become an empty map; the tool reports
			// the missing parameters in its structured result.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		out = append(out, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out
}

// toolCallMerger accumulates streamed tool-call fragments by index
type toolCallMerger struct {
	calls map[int]go_openai.ToolCall
}

func newToolCallMerger() *toolCallMerger {
	return &toolCallMerger{calls: make(map[int]go_openai.ToolCall)}
}

func (m *toolCallMerger) add(deltas []go_openai.ToolCall) {
	for _, call := range deltas {
		index := 0
		if call.Index != nil {
			index = *call.Index
		}
		if existing, found := m.calls[index]; found {
			existing.Function.Name += call.Function.Name
			existing.Function.Arguments += call.Function.Arguments
			if existing.ID == "" {
				existing.ID = call.ID
			}
			m.calls[index] = existing
		} else {
			m.calls[index] = call
		}
	}
}

func (m *toolCallMerger) merged() []go_openai.ToolCall {
	indexes := make([]int, 0, len(m.calls))
	for i := range m.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]go_openai.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, m.calls[i])
	}
	return out
}
