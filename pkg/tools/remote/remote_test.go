package remote

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/tools"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startToolServer(t *testing.T) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	NewHandler(tools.NewFinanceRegistry()).RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String()
}

func TestClient_RoundTrip(t *testing.T) {
	c := NewClient(startToolServer(t), 2*time.Second)
	ctx := context.Background()

	specs, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, specs, 8)
	assert.Equal(t, tools.ToolAdd, specs[0].Name)
	assert.Equal(t, "value1", specs[0].Parameters[0].Name)

	result, err := c.Invoke(ctx, tools.ToolRevenueGrowth, map[string]any{
		"current_revenue":  1500000,
		"previous_revenue": 1200000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Revenue Growth: 25.00%", result)

	result, err = c.Invoke(ctx, tools.ToolDebtToEquity, map[string]any{"total_debt": 500000, "total_equity": 0})
	require.NoError(t, err)
	assert.Equal(t, "Error: Total equity cannot be zero for debt-to-equity calculation", result)
}

func TestClient_UpstreamErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second).List(context.Background())
		var up *ragerr.UpstreamUnavailableError
		require.ErrorAs(t, err, &up)
		assert.False(t, up.Timeout)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, 20*time.Millisecond).Invoke(context.Background(), "add", nil)
		var up *ragerr.UpstreamUnavailableError
		require.ErrorAs(t, err, &up)
		assert.True(t, up.Timeout)
	})

	t.Run("unreachable", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		_, err = NewClient("http://"+addr, time.Second).List(context.Background())
		var up *ragerr.UpstreamUnavailableError
		assert.ErrorAs(t, err, &up)
	})
}

func TestHandler_InvokeRejectsBadBody(t *testing.T) {
	app := fiber.New()
	NewHandler(tools.NewFinanceRegistry()).RegisterRoutes(app)

	req := httptest.NewRequest(http.MethodPost, "/tools/add", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
