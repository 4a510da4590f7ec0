package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"chatgraph-backend/internal/domain"
	"chatgraph-backend/internal/llm"
	"chatgraph-backend/internal/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays a fixed sequence of model responses
type scriptedProvider struct {
	responses []scriptStep
	calls     int
	chatCalls int
}

type scriptStep struct {
	resp *llm.Response
	err  error
}

func (p *scriptedProvider) Name() string              { return "scripted" }
func (p *scriptedProvider) AvailableModels() []string { return []string{"scripted-1"} }
func (p *scriptedProvider) DefaultModel() string      { return "scripted-1" }
func (p *scriptedProvider) IsConfigured() bool        { return true }

func (p *scriptedProvider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.chatCalls++
	return p.ChatStream(ctx, req, nil)
}

func (p *scriptedProvider) ChatStream(_ context.Context, _ llm.Request, onDelta llm.StreamFunc) (*llm.Response, error) {
	if p.calls >= len(p.responses) {
		return nil, fmt.Errorf("script exhausted after %d calls", p.calls)
	}
	step := p.responses[p.calls]
	p.calls++

	if step.err != nil {
		return nil, step.err
	}
	if onDelta != nil && step.resp.Text != "" && !step.resp.IsToolRequest() {
		// stream the text in two chunks
		half := len(step.resp.Text) / 2
		onDelta(step.resp.Text[:half])
		onDelta(step.resp.Text[half:])
	}
	return step.resp, nil
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Publish(e Event) {
	s.events = append(s.events, e)
}

func userHistory(text string) []domain.Message {
	return []domain.Message{{Role: domain.RoleUser, Content: text, CreatedAt: time.Now()}}
}

func newTestRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewCalculator())
	return reg
}

func TestEngine_FinalAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptStep{
		{resp: &llm.Response{Text: "Hello there!"}},
	}}
	eng := New(provider, newTestRegistry())
	sink := &recordingSink{}

	produced, err := eng.Run(context.Background(), userHistory("Hi"), sink)
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, domain.RoleAssistant, produced[0].Role)
	assert.Equal(t, "Hello there!", produced[0].Content)

	// deltas were streamed and reassemble to the final text
	var streamed string
	for _, e := range sink.events {
		require.Equal(t, EventDelta, e.Type)
		streamed += e.Delta
	}
	assert.Equal(t, "Hello there!", streamed)
}

func TestEngine_NilSinkUsesNonStreamingCall(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptStep{
		{resp: &llm.Response{Text: "Hello there!"}},
	}}
	eng := New(provider, newTestRegistry())

	produced, err := eng.Run(context.Background(), userHistory("Hi"), nil)
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, "Hello there!", produced[0].Content)
	assert.Equal(t, 1, provider.chatCalls)
}

func TestEngine_ToolTurn(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptStep{
		{resp: &llm.Response{ToolCalls: []domain.ToolCall{{
			ID:   "call_1",
			Name: "calculator",
			Arguments: map[string]any{
				"first_num":  12.0,
				"second_num": 7.0,
				"operation":  "mul",
			},
		}}}},
		{resp: &llm.Response{Text: "12 times 7 is 84."}},
	}}
	eng := New(provider, newTestRegistry())
	sink := &recordingSink{}

	produced, err := eng.Run(context.Background(), userHistory("What is 12 times 7?"), sink)
	require.NoError(t, err)
	require.Len(t, produced, 2)

	toolMsg := produced[0]
	assert.Equal(t, domain.RoleTool, toolMsg.Role)
	assert.Equal(t, "calculator", toolMsg.ToolName)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &result))
	assert.Equal(t, 84.0, result["result"])

	final := produced[1]
	assert.Equal(t, domain.RoleAssistant, final.Role)
	assert.Contains(t, final.Content, "84")

	// the tool-in-use event fires before any final-answer delta
	require.NotEmpty(t, sink.events)
	assert.Equal(t, EventTool, sink.events[0].Type)
	assert.Equal(t, "calculator", sink.events[0].ToolName)
}

func TestEngine_ModelFailureBecomesMessage(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptStep{
		{err: fmt.Errorf("rate limited")},
	}}
	eng := New(provider, newTestRegistry())

	produced, err := eng.Run(context.Background(), userHistory("Hi"), nil)
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, domain.RoleAssistant, produced[0].Role)
	assert.Contains(t, produced[0].Content, "rate limited")
}

func TestEngine_UnknownToolBecomesErrorResult(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptStep{
		{resp: &llm.Response{ToolCalls: []domain.ToolCall{{Name: "weather"}}}},
		{resp: &llm.Response{Text: "I could not run that tool."}},
	}}
	eng := New(provider, newTestRegistry())

	produced, err := eng.Run(context.Background(), userHistory("weather?"), nil)
	require.NoError(t, err)
	require.Len(t, produced, 2)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(produced[0].Content), &result))
	assert.Contains(t, result["error"], "weather")
	assert.Equal(t, domain.RoleAssistant, produced[1].Role)
}

func TestEngine_IterationCap(t *testing.T) {
	loop := scriptStep{resp: &llm.Response{ToolCalls: []domain.ToolCall{{
		Name:      "calculator",
		Arguments: map[string]any{"first_num": 1.0, "second_num": 1.0, "operation": "add"},
	}}}}
	provider := &scriptedProvider{responses: []scriptStep{loop, loop, loop}}
	eng := New(provider, newTestRegistry(), WithMaxIterations(3))

	produced, err := eng.Run(context.Background(), userHistory("loop forever"), nil)
	require.NoError(t, err)

	// three tool messages plus the cap notice
	require.Len(t, produced, 4)
	final := produced[len(produced)-1]
	assert.Equal(t, domain.RoleAssistant, final.Role)
	assert.Contains(t, final.Content, "3")
}
