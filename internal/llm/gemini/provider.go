package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/llm"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Provider struct {
	apiKey string
	model  string
}

func NewProvider(apiKey, model string) *Provider {
	return &Provider{
		apiKey: apiKey,
		model:  model,
	}
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) AvailableModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	}
}

func (p *Provider) DefaultModel() string {
	if p.model != "" {
		return p.model
	}
	return "gemini-2.5-flash"
}

func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Chat runs one model invocation over the history
func (p *Provider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("gemini provider is not configured (missing API key)")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	session, last, err := p.prepare(client, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	out, err := responseFrom(resp)
	if err != nil {
		return nil, err
	}
	out.Model = p.DefaultModel()
	out.LatencyMs = time.Since(start).Milliseconds()
	return out, nil
}

// ChatStream runs one model invocation, streaming final-answer text chunks
func (p *Provider) ChatStream(ctx context.Context, req llm.Request, onDelta llm.StreamFunc) (*llm.Response, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("gemini provider is not configured (missing API key)")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	session, last, err := p.prepare(client, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	iter := session.SendMessageStream(ctx, last...)

	out := &llm.Response{Model: p.DefaultModel()}
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gemini stream error: %w", err)
		}

		chunk, err := responseFrom(resp)
		if err != nil {
			return nil, err
		}
		if chunk.Text != "" {
			out.Text += chunk.Text
			if onDelta != nil {
				onDelta(chunk.Text)
			}
		}
		out.ToolCalls = append(out.ToolCalls, chunk.ToolCalls...)
		if chunk.TokensUsed > 0 {
			out.TokensUsed = chunk.TokensUsed
		}
	}

	out.LatencyMs = time.Since(start).Milliseconds()
	return out, nil
}

// prepare builds the chat session: system prompt, tool declarations, history
// up to (but excluding) the latest message, which is returned as parts.
func (p *Provider) prepare(client *genai.Client, req llm.Request) (*genai.ChatSession, []genai.Part, error) {
	if len(req.Messages) == 0 {
		return nil, nil, fmt.Errorf("empty history")
	}

	model := req.Model
	if model == "" {
		model = p.DefaultModel()
	}

	generativeModel := client.GenerativeModel(model)
	var temperature float32 = 0.0
	generativeModel.Temperature = &temperature
	generativeModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.BuildSystemPrompt(req.Tools))},
	}

	if len(req.Tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaFromMap(t.Parameters),
			})
		}
		generativeModel.Tools = []*genai.Tool{tool}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		contents = append(contents, contentFrom(m))
	}

	session := generativeModel.StartChat()
	session.History = contents[:len(contents)-1]
	return session, contents[len(contents)-1].Parts, nil
}

func contentFrom(m domain.Message) *genai.Content {
	switch m.Role {
	case domain.RoleAssistant:
		c := &genai.Content{Role: "model"}
		if m.Content != "" {
			c.Parts = append(c.Parts, genai.Text(m.Content))
		}
		for _, tc := range m.ToolCalls {
			c.Parts = append(c.Parts, genai.FunctionCall{Name: tc.Name, Args: tc.Arguments})
		}
		return c
	case domain.RoleTool:
		response := map[string]any{}
		if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
			response = map[string]any{"result": m.Content}
		}
		return &genai.Content{
			Role:  "function",
			Parts: []genai.Part{genai.FunctionResponse{Name: m.ToolName, Response: response}},
		}
	default:
		return &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}}
	}
}

func responseFrom(resp *genai.GenerateContentResponse) (*llm.Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from gemini")
	}

	out := &llm.Response{}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			out.Text += string(v)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{Name: v.Name, Arguments: v.Args})
		}
	}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// schemaFromMap converts a JSON-schema object map into the genai schema type.
// Only the subset the tools actually use is mapped.
func schemaFromMap(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}

	s := &genai.Schema{}
	switch m["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	default:
		s.Type = genai.TypeString
	}

	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := m["enum"].([]string); ok {
		s.Enum = enum
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = schemaFromMap(pm)
			}
		}
	}
	if required, ok := m["required"].([]string); ok {
		s.Required = required
	}
	return s
}
