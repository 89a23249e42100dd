package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finance-rag-be/internal/bootstrap"
	"finance-rag-be/internal/config"
	"finance-rag-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		App: config.AppConfig{
			Port:               "0",
			CorsAllowedOrigins: "*",
			UploadDir:          dir,
			EventsTopic:        "PIPELINE_EVENTS",
			SessionTTL:         time.Minute,
		},
		Ai: config.AIConfig{
			EmbeddingProvider: "hash",
			LLMProvider:       "ollama",
			OllamaBaseURL:     "http://127.0.0.1:1",
		},
		Index: config.IndexConfig{Store: "memory", SnapshotPath: filepath.Join(dir, "index.json"), Lock: "local"},
		Pipeline: config.PipelineConfig{
			ChunkSize: 500, ChunkOverlap: 100, MaxRecords: 100, TopK: 4, MaxToolCalls: 5,
		},
	}
	container, err := bootstrap.NewContainer(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(container.Close)
	return New(cfg, container)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestServer_Routes(t *testing.T) {
	app := newTestServer(t).GetApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/tools/v1", nil))
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 8)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/index/v1", nil))
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, resp)["data"].(map[string]any)["available"])
}

func TestServer_QuestionBeforeIngestionIsConflict(t *testing.T) {
	app := newTestServer(t).GetApp()

	req := httptest.NewRequest(http.MethodPost, "/api/chat/v1", strings.NewReader(`{"query":"what was revenue?"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "RETRIEVAL", body["stage"])
}

func TestServer_WebsocketRequiresUpgrade(t *testing.T) {
	app := newTestServer(t).GetApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat/v1/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
