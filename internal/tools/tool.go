package tools

import (
	"context"
	"fmt"
)

// Tool is a callable capability the model may request during a turn.
type Tool interface {
	// Name returns the identifier the model uses to request the tool
	Name() string

	// Description tells the model what the tool does
	Description() string

	// Parameters returns the JSON schema of the tool's arguments
	Parameters() map[string]any

	// Call executes the tool. Invalid input is reported inside the result
	// (an {"error": ...} map) whenever possible; a non-nil error is
	// reserved for transport-level failures.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Registry is a static dispatch table from tool name to handler.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the dispatch table
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t, nil
}

// List returns all registered tools in registration order
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}
