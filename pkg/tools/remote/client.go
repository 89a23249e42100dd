package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/tools"
)

const serviceName = "tool dispatch endpoint"

// Client is a Catalog backed by a tool server. The tool list is fetched on
// every List call.
type Client struct {
	BaseURL string
	Timeout time.Duration
	HTTP    *http.Client
}

var _ tools.Catalog = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		HTTP:    &http.Client{},
	}
}

// --- Wire types (shared with the tool server) ---

type ListResponse struct {
	Tools []tools.ToolSpec `json:"tools"`
}

type InvokeRequest struct {
	Arguments map[string]any `json:"arguments"`
}

type InvokeResponse struct {
	Result string `json:"result"`
}

func (c *Client) List(ctx context.Context) ([]tools.ToolSpec, error) {
	var out ListResponse
	if err := c.do(ctx, http.MethodGet, "/tools", nil, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	var out InvokeResponse
	path := "/tools/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodPost, path, InvokeRequest{Arguments: args}, &out); err != nil {
		return "", err
	}
	return out.Result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return ragerr.Upstream(serviceName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ragerr.Upstream(serviceName, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return ragerr.Upstream(serviceName, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return ragerr.Upstream(serviceName, fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}
