package factory

import (
	"fmt"
	"time"

	"finance-rag-be/pkg/llm"
	"finance-rag-be/pkg/llm/ollama"
	"finance-rag-be/pkg/llm/openai"
)

const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

func NewLLMProvider(providerType, modelName, baseURL, apiKey string, timeout time.Duration) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		return ollama.NewOllamaProvider(baseURL, modelName, timeout), nil
	case "openai":
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName, timeout), nil
	case "groq":
		if baseURL == "" {
			baseURL = DefaultGroqBaseURL
		}
		if modelName == "" {
			modelName = "llama-3.3-70b-versatile"
		}
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
