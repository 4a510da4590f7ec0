package llm_test

import (
	"strings"
	"testing"

	"chatgraph-backend/internal/llm"
)

func TestBuildSystemPrompt(t *testing.T) {
	prompt := llm.BuildSystemPrompt([]llm.ToolDefinition{
		{Name: "calculator", Description: "Perform basic arithmetic"},
		{Name: "search", Description: "Search the web"},
	})

	mustContain := []string{
		"conversational assistant",
		"calculator: Perform basic arithmetic",
		"search: Search the web",
	}

	for _, s := range mustContain {
		if !strings.Contains(prompt, s) {
			t.Errorf("prompt should contain %q", s)
		}
	}
}

func TestBuildSystemPrompt_NoTools(t *testing.T) {
	prompt := llm.BuildSystemPrompt(nil)

	if strings.Contains(prompt, "Available tools") {
		t.Error("prompt should not list tools when none are registered")
	}
}
