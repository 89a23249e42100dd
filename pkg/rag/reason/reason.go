// Package reason runs the bounded model/tool loop that produces the final answer.
package reason

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/llm"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/tools"
)

const (
	DefaultMaxToolCalls = 5
	DefaultModelTimeout = 120 * time.Second
	DefaultToolTimeout  = 10 * time.Second

	modelService = "model inference endpoint"
)

// ErrEmptyAnswer is wrapped in an UpstreamUnavailableError when the model ends
// the loop without content.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

type Config struct {
	// MaxToolCalls counts individual tool invocations per request.
	MaxToolCalls int
	ModelTimeout time.Duration
	ToolTimeout  time.Duration
	Temperature  float64
}

// ToolUse records one dispatched call and what the tool returned.
type ToolUse struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"`
}

type Answer struct {
	Content   string
	ToolCalls []ToolUse
}

type Stage struct {
	provider llm.LLMProvider
	catalog  tools.Catalog
	logger   logger.ILogger
	cfg      Config
}

func NewStage(provider llm.LLMProvider, catalog tools.Catalog, log logger.ILogger, cfg Config) *Stage {
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = DefaultMaxToolCalls
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	return &Stage{provider: provider, catalog: catalog, logger: log, cfg: cfg}
}

// Respond asks the model to answer query from contextBlob, dispatching the
// tool calls it requests until it replies with plain content.
func (s *Stage) Respond(ctx context.Context, query, contextBlob string) (Answer, error) {
	definitions, err := s.resolveTools(ctx)
	if err != nil {
		return Answer{}, err
	}

	history := []llm.Message{{Role: llm.RoleUser, Content: BuildPrompt(contextBlob, query)}}
	var uses []ToolUse
	lastText := ""

	for round := 1; ; round++ {
		reply, err := s.chat(ctx, history, definitions)
		if err != nil {
			return Answer{}, err
		}
		if reply.Content != "" {
			lastText = reply.Content
		}

		if len(reply.ToolCalls) == 0 {
			if strings.TrimSpace(reply.Content) == "" {
				return Answer{}, ragerr.Upstream(modelService, ErrEmptyAnswer)
			}
			s.logger.Info("REASON", "Answer produced", map[string]interface{}{
				"rounds":     round,
				"tool_calls": len(uses),
			})
			return Answer{Content: reply.Content, ToolCalls: uses}, nil
		}

		history = append(history, reply)
		for _, call := range reply.ToolCalls {
			if len(uses) >= s.cfg.MaxToolCalls {
				s.logger.Warn("REASON", "Tool call limit reached", map[string]interface{}{
					"limit":     s.cfg.MaxToolCalls,
					"requested": call.Name,
				})
				return Answer{}, &ragerr.ToolLoopExceededError{
					Limit:   s.cfg.MaxToolCalls,
					Partial: partialAnswer(lastText, uses),
				}
			}

			use, err := s.dispatch(ctx, call)
			if err != nil {
				return Answer{}, err
			}
			uses = append(uses, use)
			history = append(history, llm.Message{
				Role:       llm.RoleTool,
				Content:    use.Result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
}

// resolveTools lists the catalog on every request so the tool set is never cached.
func (s *Stage) resolveTools(ctx context.Context) ([]llm.ToolDefinition, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout)
	defer cancel()

	specs, err := s.catalog.List(listCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ragerr.Upstream("tool catalog", err)
	}

	definitions := make([]llm.ToolDefinition, len(specs))
	for i, spec := range specs {
		definitions[i] = llm.ToolDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.JSONSchema(),
		}
	}
	return definitions, nil
}

func (s *Stage) chat(ctx context.Context, history []llm.Message, definitions []llm.ToolDefinition) (llm.Message, error) {
	modelCtx, cancel := context.WithTimeout(ctx, s.cfg.ModelTimeout)
	defer cancel()

	reply, err := s.provider.Chat(modelCtx, history, definitions, llm.WithTemperature(s.cfg.Temperature))
	if err != nil {
		if ctx.Err() != nil {
			return llm.Message{}, ctx.Err()
		}
		var up *ragerr.UpstreamUnavailableError
		if errors.As(err, &up) {
			return llm.Message{}, err
		}
		if errors.Is(modelCtx.Err(), context.DeadlineExceeded) {
			return llm.Message{}, ragerr.Upstream(modelService, err)
		}
		return llm.Message{}, fmt.Errorf("model call: %w", err)
	}
	return reply, nil
}

// dispatch runs one tool call. A result that arrives after the request was
// cancelled is discarded.
func (s *Stage) dispatch(ctx context.Context, call llm.ToolCall) (ToolUse, error) {
	toolCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.catalog.Invoke(toolCtx, call.Name, call.Arguments)
	if ctx.Err() != nil {
		return ToolUse{}, ctx.Err()
	}
	if err != nil {
		return ToolUse{}, ragerr.Upstream("tool dispatch endpoint", err)
	}

	s.logger.Info("REASON", "[TOOL] "+call.Name, map[string]interface{}{
		"args":     call.Arguments,
		"result":   result,
		"duration": time.Since(start).String(),
	})
	return ToolUse{Name: call.Name, Args: call.Arguments, Result: result}, nil
}

func partialAnswer(lastText string, uses []ToolUse) string {
	if lastText != "" {
		return lastText
	}
	if len(uses) == 0 {
		return ""
	}
	lines := make([]string, len(uses))
	for i, u := range uses {
		lines[i] = fmt.Sprintf("%s: %s", u.Name, u.Result)
	}
	return "Tool results so far:\n" + strings.Join(lines, "\n")
}
