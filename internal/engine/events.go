package engine

// EventType identifies a turn event
type EventType string

const (
	// EventDelta carries an incremental chunk of assistant text
	EventDelta EventType = "delta"
	// EventTool announces a tool is about to run ("tool in use")
	EventTool EventType = "tool"
)

// Event is a UI-affecting side-channel notification emitted while a turn
// runs. Events are not part of the persisted message stream.
type Event struct {
	Type     EventType `json:"type"`
	Delta    string    `json:"delta,omitempty"`
	ToolName string    `json:"tool_name,omitempty"`
}

// Sink receives turn events as they happen
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) {
	f(e)
}
