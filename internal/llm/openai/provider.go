package openai

import (
	"chatgraph-backend/internal/llm/openaicompat"
)

// NewProvider creates a new OpenAI provider
func NewProvider(apiKey, defaultModel string) *openaicompat.Provider {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return openaicompat.NewProvider("openai", "", apiKey, defaultModel, []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
	})
}
