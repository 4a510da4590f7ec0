package domain

import (
	"time"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message represents one turn's content within a thread. Messages are
// immutable once created and only ever appended to the tail of a thread.
type Message struct {
	Role     MessageRole `json:"role"`
	Content  string      `json:"content"`
	ToolName string      `json:"tool_name,omitempty"` // set when Role == RoleTool

	// In-turn plumbing used while the assistant-tool loop is running.
	// Providers need call ids to correlate tool results; neither field
	// is persisted.
	ToolCallID string     `json:"-"`
	ToolCalls  []ToolCall `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// ToolCall is a transient tool invocation requested by the assistant step.
// It is never persisted on its own; its result is recorded as a Message
// with role "tool".
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
