package embedding

import (
	"fmt"
	"time"
)

// NewEmbeddingProvider builds the provider named by providerType. baseURL and
// model fall back to each provider's defaults when empty.
func NewEmbeddingProvider(providerType, baseURL, model, apiKey string, timeout time.Duration) (EmbeddingProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOllamaProvider(baseURL, model, timeout), nil
	case "openai":
		return NewOpenAIProvider(apiKey, baseURL, model, timeout)
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("gemini embedding provider requires an API key")
		}
		return NewGeminiProvider(apiKey, timeout), nil
	case "hash":
		return NewHashProvider(DefaultHashDimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", providerType)
	}
}
