package reason

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/llm"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays canned replies and records what it was sent.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []llm.Message
	err     error
	calls   [][]llm.Message
	tools   [][]llm.ToolDefinition
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, defs []llm.ToolDefinition, _ ...llm.Option) (llm.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]llm.Message(nil), history...))
	p.tools = append(p.tools, defs)
	if p.err != nil {
		return llm.Message{}, p.err
	}
	if len(p.replies) == 0 {
		return llm.Message{}, errors.New("script exhausted")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

// loopingProvider asks for another tool on every turn.
type loopingProvider struct{ turns int }

func (p *loopingProvider) Chat(context.Context, []llm.Message, []llm.ToolDefinition, ...llm.Option) (llm.Message, error) {
	p.turns++
	return llm.Message{
		Role:    llm.RoleAssistant,
		Content: "Let me compute again.",
		ToolCalls: []llm.ToolCall{{
			ID: "c", Name: tools.ToolAdd, Arguments: map[string]any{"value1": 1.0, "value2": 1.0},
		}},
	}, nil
}

func toolCall(id, name string, args map[string]any) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: args}}}
}

func TestRespond_WithoutTools(t *testing.T) {
	p := &scriptedProvider{replies: []llm.Message{{Role: llm.RoleAssistant, Content: "Revenue was 1.5M."}}}
	stage := NewStage(p, tools.NewFinanceRegistry(), logger.NewNopLogger(), Config{})

	answer, err := stage.Respond(context.Background(), "What was revenue?", "Company: A\nRevenue: 1500000")
	require.NoError(t, err)
	assert.Equal(t, "Revenue was 1.5M.", answer.Content)
	assert.Empty(t, answer.ToolCalls)

	require.Len(t, p.calls, 1)
	prompt := p.calls[0][0].Content
	assert.Contains(t, prompt, "Use the tools only if necessary")
	assert.Contains(t, prompt, "Context:\nCompany: A\nRevenue: 1500000")
	assert.Contains(t, prompt, "Query:\nWhat was revenue?")
	assert.Len(t, p.tools[0], 8)
}

func TestRespond_DispatchesToolsAndFeedsResultsBack(t *testing.T) {
	p := &scriptedProvider{replies: []llm.Message{
		toolCall("call_1", tools.ToolDebtToEquity, map[string]any{"total_debt": 500000.0, "total_equity": 1000000.0}),
		toolCall("call_2", tools.ToolDivide, map[string]any{"value1": 10.0, "value2": 0.0}),
		{Role: llm.RoleAssistant, Content: "Using debt_to_equity(500000, 1000000) the ratio is 0.50."},
	}}
	stage := NewStage(p, tools.NewFinanceRegistry(), logger.NewNopLogger(), Config{})

	answer, err := stage.Respond(context.Background(), "debt to equity of A?", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "Using debt_to_equity(500000, 1000000) the ratio is 0.50.", answer.Content)
	require.Len(t, answer.ToolCalls, 2)
	assert.Equal(t, "Debt-to-Equity Ratio: 0.50", answer.ToolCalls[0].Result)
	assert.Equal(t, "Error: Division by zero is not allowed", answer.ToolCalls[1].Result)

	require.Len(t, p.calls, 3)
	last := p.calls[2]
	require.Len(t, last, 5)
	assert.Equal(t, llm.RoleTool, last[2].Role)
	assert.Equal(t, "call_1", last[2].ToolCallID)
	assert.Equal(t, "Debt-to-Equity Ratio: 0.50", last[2].Content)
	assert.Equal(t, "Error: Division by zero is not allowed", last[4].Content)
}

func TestRespond_ToolLoopIsBounded(t *testing.T) {
	p := &loopingProvider{}
	stage := NewStage(p, tools.NewFinanceRegistry(), logger.NewNopLogger(), Config{MaxToolCalls: 3})

	_, err := stage.Respond(context.Background(), "loop forever", "")
	var loopErr *ragerr.ToolLoopExceededError
	require.ErrorAs(t, err, &loopErr)
	assert.Equal(t, 3, loopErr.Limit)
	assert.Equal(t, "Let me compute again.", loopErr.Partial)
	assert.Equal(t, 4, p.turns)
}

func TestRespond_PartialFallsBackToToolResults(t *testing.T) {
	calls := make([]llm.ToolCall, 3)
	for i := range calls {
		calls[i] = llm.ToolCall{ID: "c", Name: tools.ToolAdd, Arguments: map[string]any{"value1": 1000.0, "value2": 1.0}}
	}
	p := &scriptedProvider{replies: []llm.Message{{Role: llm.RoleAssistant, ToolCalls: calls}}}
	stage := NewStage(p, tools.NewFinanceRegistry(), logger.NewNopLogger(), Config{MaxToolCalls: 2})

	_, err := stage.Respond(context.Background(), "q", "")
	var loopErr *ragerr.ToolLoopExceededError
	require.ErrorAs(t, err, &loopErr)
	assert.Equal(t, "Tool results so far:\nadd: Sum: 1,001.00\nadd: Sum: 1,001.00", loopErr.Partial)
}

// cancellingCatalog cancels the request while a tool is running.
type cancellingCatalog struct {
	tools.Catalog
	cancel context.CancelFunc
}

func (c *cancellingCatalog) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	c.cancel()
	return "Sum: 2.00", nil
}

func TestRespond_CancelledDuringToolDropsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &scriptedProvider{replies: []llm.Message{
		toolCall("c1", tools.ToolAdd, map[string]any{"value1": 1.0, "value2": 1.0}),
		{Role: llm.RoleAssistant, Content: "should not be reached"},
	}}
	catalog := &cancellingCatalog{Catalog: tools.NewFinanceRegistry(), cancel: cancel}
	stage := NewStage(p, catalog, logger.NewNopLogger(), Config{})

	answer, err := stage.Respond(ctx, "q", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, answer.ToolCalls)
	assert.Len(t, p.calls, 1)
}

func TestRespond_UpstreamErrorsPropagate(t *testing.T) {
	upstream := ragerr.Upstream("ollama chat", errors.New("connection refused"))
	p := &scriptedProvider{err: upstream}
	stage := NewStage(p, tools.NewFinanceRegistry(), logger.NewNopLogger(), Config{})

	_, err := stage.Respond(context.Background(), "q", "")
	var up *ragerr.UpstreamUnavailableError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "ollama chat", up.Service)
}

func TestRespond_EmptyAnswerIsUpstreamFailure(t *testing.T) {
	p := &scriptedProvider{replies: []llm.Message{{Role: llm.RoleAssistant, Content: "  "}}}
	stage := NewStage(p, tools.NewFinanceRegistry(), logger.NewNopLogger(), Config{})

	_, err := stage.Respond(context.Background(), "q", "")
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

type unreachableCatalog struct{}

func (unreachableCatalog) List(context.Context) ([]tools.ToolSpec, error) {
	return nil, errors.New("dial tcp 127.0.0.1:8000: connection refused")
}

func (unreachableCatalog) Invoke(context.Context, string, map[string]any) (string, error) {
	return "", errors.New("unreachable")
}

func TestRespond_CatalogUnavailable(t *testing.T) {
	stage := NewStage(&scriptedProvider{}, unreachableCatalog{}, logger.NewNopLogger(), Config{})

	_, err := stage.Respond(context.Background(), "q", "")
	var up *ragerr.UpstreamUnavailableError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "tool catalog", up.Service)
}

// slowCatalog lists the finance tools but never finishes an invocation in time.
type slowCatalog struct{ tools.Catalog }

func (slowCatalog) Invoke(ctx context.Context, _ string, _ map[string]any) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRespond_ToolTimeoutIsUpstream(t *testing.T) {
	p := &scriptedProvider{replies: []llm.Message{
		toolCall("c1", tools.ToolAdd, map[string]any{"value1": 1.0, "value2": 1.0}),
	}}
	stage := NewStage(p, slowCatalog{tools.NewFinanceRegistry()}, logger.NewNopLogger(), Config{ToolTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := stage.Respond(context.Background(), "q", "")

	var up *ragerr.UpstreamUnavailableError
	require.ErrorAs(t, err, &up)
	assert.True(t, up.Timeout)
	assert.Equal(t, "tool dispatch endpoint", up.Service)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, p.calls, 1)
}

// hangingProvider ignores the request and waits for the deadline.
type hangingProvider struct{}

func (hangingProvider) Chat(ctx context.Context, _ []llm.Message, _ []llm.ToolDefinition, _ ...llm.Option) (llm.Message, error) {
	<-ctx.Done()
	return llm.Message{}, ctx.Err()
}

func TestRespond_ModelTimeoutIsUpstream(t *testing.T) {
	stage := NewStage(hangingProvider{}, tools.NewFinanceRegistry(), logger.NewNopLogger(), Config{ModelTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := stage.Respond(context.Background(), "q", "")

	var up *ragerr.UpstreamUnavailableError
	require.ErrorAs(t, err, &up)
	assert.True(t, up.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
