package apiclient

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finance-rag-be/internal/controller"
	"finance-rag-be/internal/dto"
	"finance-rag-be/internal/pkg/serverutils"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChat struct {
	err      error
	uploaded string
}

func (s *scriptedChat) Ask(_ context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ChatResponse{SessionID: "s1", Answer: "answer to " + req.Query, Route: "direct_retrieval"}, nil
}

func (s *scriptedChat) AskWithUpload(ctx context.Context, req *dto.ChatRequest, _ string, body io.Reader) (*dto.ChatResponse, error) {
	data, _ := io.ReadAll(body)
	s.uploaded = string(data)
	return s.Ask(ctx, req)
}

func (s *scriptedChat) DeleteSession(context.Context, string) error { return nil }

func (s *scriptedChat) GetSession(context.Context, string) (*store.Session, error) {
	return nil, fiber.ErrNotFound
}

func startAPI(t *testing.T, chat *scriptedChat) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: serverutils.ErrorHandler})
	controller.NewChatController(chat).RegisterRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestClient_Ask(t *testing.T) {
	c := New(startAPI(t, &scriptedChat{}), 5*time.Second)

	res, err := c.Ask(context.Background(), dto.ChatRequest{Query: "roi?"})
	require.NoError(t, err)
	assert.Equal(t, "answer to roi?", res.Answer)
	assert.Equal(t, "s1", res.SessionID)
}

func TestClient_Upload(t *testing.T) {
	chat := &scriptedChat{}
	c := New(startAPI(t, chat), 5*time.Second)

	path := filepath.Join(t.TempDir(), "q3.csv")
	require.NoError(t, os.WriteFile(path, []byte("metric,value\nrevenue,10\n"), 0o644))

	res, err := c.Upload(context.Background(), path, "revenue?", "")
	require.NoError(t, err)
	assert.Equal(t, "answer to revenue?", res.Answer)
	assert.Equal(t, "metric,value\nrevenue,10\n", chat.uploaded)
}

func TestClient_APIErrors(t *testing.T) {
	loop := &ragerr.StageError{Stage: "REASONING", Err: &ragerr.ToolLoopExceededError{Limit: 5, Partial: "ROI: 25.00%"}}
	c := New(startAPI(t, &scriptedChat{err: loop}), 5*time.Second)

	_, err := c.Ask(context.Background(), dto.ChatRequest{Query: "q"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 422, apiErr.Status)
	assert.Equal(t, "REASONING", apiErr.Stage)
	assert.Equal(t, "ROI: 25.00%", apiErr.PartialAnswer)

	_, err = c.Ask(context.Background(), dto.ChatRequest{})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Contains(t, apiErr.Fields, "query")
}

func TestClient_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second)
	_, err := c.Tools(context.Background())
	assert.Error(t, err)
}
