package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RAG_CONFIG_FILE", "")
	cfg := Load()

	assert.Equal(t, 500, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 100, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 100, cfg.Pipeline.MaxRecords)
	assert.Equal(t, 4, cfg.Pipeline.TopK)
	assert.Equal(t, 5, cfg.Pipeline.MaxToolCalls)
	assert.Equal(t, "memory", cfg.Index.Store)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAG_CONFIG_FILE", "")
	t.Setenv("INGEST_MAX_RECORDS", "250")
	t.Setenv("STAGE_TIMEOUT_REASONING", "90s")
	t.Setenv("RETRIEVAL_TOP_K", "not-a-number")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, 250, cfg.Pipeline.MaxRecords)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.ReasoningTimeout)
	assert.Equal(t, 4, cfg.Pipeline.TopK)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestApplyPipelineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_k: 8\nmax_tool_calls: 3\ntool_timeout: 2s\n"), 0o644))

	p := PipelineConfig{ChunkSize: 500, ChunkOverlap: 100, MaxRecords: 100, TopK: 4, MaxToolCalls: 5}
	require.NoError(t, ApplyPipelineFile(path, &p))

	assert.Equal(t, 8, p.TopK)
	assert.Equal(t, 3, p.MaxToolCalls)
	assert.Equal(t, 2*time.Second, p.ToolTimeout)
	assert.Equal(t, 500, p.ChunkSize)

	assert.NoError(t, ApplyPipelineFile(filepath.Join(t.TempDir(), "missing.yaml"), &p))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("top_k: [1"), 0o644))
	assert.Error(t, ApplyPipelineFile(bad, &p))
}

func TestPipelineConfig_Validate(t *testing.T) {
	valid := PipelineConfig{ChunkSize: 500, ChunkOverlap: 100, MaxRecords: 100, TopK: 4, MaxToolCalls: 5}
	require.NoError(t, valid.Validate())

	overlap := valid
	overlap.ChunkOverlap = 500
	assert.Error(t, overlap.Validate())

	noTools := valid
	noTools.MaxToolCalls = 0
	assert.Error(t, noTools.Validate())
}
