package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"finance-rag-be/pkg/llm"
	"finance-rag-be/pkg/rag/ragerr"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to OpenAI or any endpoint speaking its chat API,
// such as Groq at https://api.groq.com/openai/v1.
type OpenAIProvider struct {
	client    *goopenai.Client
	modelName string
	timeout   time.Duration
	service   string
}

var _ llm.LLMProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, baseURL, modelName string, timeout time.Duration) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	service := "openai chat"
	if baseURL != "" {
		cfg.BaseURL = baseURL
		service = "chat endpoint " + baseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIProvider{
		client:    goopenai.NewClientWithConfig(cfg),
		modelName: modelName,
		timeout:   timeout,
		service:   service,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, opts ...llm.Option) (llm.Message, error) {
	options := llm.ApplyOptions(llm.Options{Model: p.modelName}, opts...)

	req := goopenai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    toOpenAIMessages(history),
		Tools:       toOpenAITools(tools),
		Temperature: temperature(options.Temperature),
		MaxTokens:   options.MaxTokens,
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return llm.Message{}, p.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Message{}, ragerr.Upstream(p.service, errors.New("response has no choices"))
	}

	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

// temperature keeps 0 on the wire. The request field is omitempty, so a plain
// zero would leave the endpoint on its own default.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// mapError keeps client mistakes (bad request, auth) distinguishable from outages.
func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
		return fmt.Errorf("%s rejected the request: %w", p.service, err)
	}
	return ragerr.Upstream(p.service, err)
}

func toOpenAIMessages(history []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		m := goopenai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == llm.RoleTool {
			m.Name = msg.Name
		}
		for _, tc := range msg.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			m.ToolCalls = append(m.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		out[i] = m
	}
	return out
}

func toOpenAITools(tools []llm.ToolDefinition) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, len(tools))
	for i, t := range tools {
		out[i] = goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func fromOpenAIMessage(m goopenai.ChatCompletionMessage) llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant, Content: m.Content}
	for _, tc := range m.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			// undecodable arguments surface as "missing argument" results the model can correct
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return msg
}
