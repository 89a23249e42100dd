// Package apiclient talks to the chat API from command line tools.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"finance-rag-be/internal/dto"
	"finance-rag-be/pkg/tools"

	"github.com/gofiber/fiber/v2"
)

// APIError is a non-2xx answer from the server, decoded from its envelope.
type APIError struct {
	Status        int
	Message       string
	Stage         string
	Retryable     bool
	PartialAnswer string
	Fields        map[string]string
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%d (%s): %s", e.Status, e.Stage, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type envelope[T any] struct {
	Success   bool              `json:"success"`
	Code      int               `json:"code"`
	Message   string            `json:"message"`
	Data      T                 `json:"data"`
	Errors    map[string]string `json:"errors"`
	Stage     string            `json:"stage"`
	Retryable bool              `json:"retryable"`
}

type Client struct {
	BaseURL string
	Timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: timeout}
}

func (c *Client) Ask(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error) {
	a := fiber.Post(c.BaseURL + "/api/chat/v1").JSON(req)
	return decode[*dto.ChatResponse](ctx, c, a)
}

// Upload sends a local CSV with the question, the way the web UI does.
func (c *Client) Upload(ctx context.Context, path, query, sessionID string) (*dto.ChatResponse, error) {
	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("query", query)
	if sessionID != "" {
		args.Set("session_id", sessionID)
	}

	a := fiber.Post(c.BaseURL+"/api/chat/v1/upload").SendFile(path, "file").MultipartForm(args)
	return decode[*dto.ChatResponse](ctx, c, a)
}

func (c *Client) Tools(ctx context.Context) ([]tools.ToolSpec, error) {
	return decode[[]tools.ToolSpec](ctx, c, fiber.Get(c.BaseURL+"/api/tools/v1"))
}

func (c *Client) IndexStatus(ctx context.Context) (*dto.IndexStatusResponse, error) {
	return decode[*dto.IndexStatusResponse](ctx, c, fiber.Get(c.BaseURL+"/api/index/v1"))
}

func decode[T any](ctx context.Context, c *Client, a *fiber.Agent) (T, error) {
	var zero T

	timeout := c.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	code, body, errs := a.Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return zero, fmt.Errorf("request failed: %w", errors.Join(errs...))
	}

	var env envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, &APIError{Status: code, Message: strings.TrimSpace(string(body))}
	}

	if code >= fiber.StatusBadRequest {
		apiErr := &APIError{
			Status:    code,
			Message:   env.Message,
			Stage:     env.Stage,
			Retryable: env.Retryable,
			Fields:    env.Errors,
		}
		if code == fiber.StatusUnprocessableEntity && len(env.Data) > 0 {
			var partial struct {
				PartialAnswer string `json:"partial_answer"`
			}
			if json.Unmarshal(env.Data, &partial) == nil {
				apiErr.PartialAnswer = partial.PartialAnswer
			}
		}
		return zero, apiErr
	}

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("decode response data: %w", err)
	}
	return out, nil
}
