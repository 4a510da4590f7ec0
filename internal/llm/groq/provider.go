package groq

import (
	"chatgraph-backend/internal/llm/openaicompat"
)

const baseURL = "https://api.groq.com/openai/v1"

// NewProvider creates a new Groq provider
func NewProvider(apiKey, defaultModel string) *openaicompat.Provider {
	if defaultModel == "" {
		defaultModel = "openai/gpt-oss-120b"
	}
	return openaicompat.NewProvider("groq", baseURL, apiKey, defaultModel, []string{
		"openai/gpt-oss-120b",
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
	})
}
