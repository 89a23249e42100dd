package embedding

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"finance-rag-be/pkg/rag/ragerr"
)

// OpenAIProvider embeds through any OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration) (EmbeddingProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai embedding provider requires an API key")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	if len(text) == 0 {
		return nil, errors.New("cannot embed empty text")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, ragerr.Upstream("openai embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}

	raw := resp.Data[0].Embedding
	values := make([]float32, len(raw))
	for i := range raw {
		values[i] = float32(raw[i])
	}

	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{
			Values: normalizeVector(values),
		},
	}, nil
}
