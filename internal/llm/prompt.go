package llm

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt creates the system instruction sent ahead of the history
func BuildSystemPrompt(tools []ToolDefinition) string {
	var b strings.Builder
	b.WriteString(`You are a helpful conversational assistant.

Rules:
1. Answer directly when you can
2. Use a tool when the question needs arithmetic or current information
3. After a tool result arrives, answer the user using that result
4. Keep answers concise and conversational`)

	if len(tools) > 0 {
		b.WriteString("\n\nAvailable tools:\n")
		for _, t := range tools {
			b.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
		}
	}

	return b.String()
}
