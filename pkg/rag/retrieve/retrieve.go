// Package retrieve turns a query into the context blob the reasoning stage reads.
package retrieve

import (
	"context"
	"strings"
	"time"

	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/embedding"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/vectorindex"
)

const (
	DefaultTopK          = 4
	DefaultSearchTimeout = 30 * time.Second
)

type Config struct {
	TopK    int
	Timeout time.Duration // per external call: query embedding, then search
}

// Result keeps the ranked fragments next to the blob for logging and the API.
type Result struct {
	Context   string
	Fragments []vectorindex.ScoredChunk
}

type Stage struct {
	embedder embedding.EmbeddingProvider
	store    vectorindex.Store
	logger   logger.ILogger
	cfg      Config
}

func NewStage(embedder embedding.EmbeddingProvider, store vectorindex.Store, log logger.ILogger, cfg Config) *Stage {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSearchTimeout
	}
	return &Stage{embedder: embedder, store: store, logger: log, cfg: cfg}
}

// Retrieve returns the top-K fragments concatenated in rank order, with no
// separator and no minimum score. An index with no matches yields "".
func (s *Stage) Retrieve(ctx context.Context, query string) (Result, error) {
	// fail fast before paying for an embedding call
	if _, err := s.store.Generation(ctx); err != nil {
		return Result{}, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	resp, err := s.embedder.Generate(embedCtx, query, embedding.TaskRetrievalQuery)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, ragerr.Upstream("embedding service", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	fragments, err := s.store.Search(searchCtx, resp.Embedding.Values, s.cfg.TopK)
	cancel()
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f.Chunk.Text)
	}

	s.logger.Debug("RETRIEVE", "Fragments retrieved", map[string]interface{}{
		"query":     query,
		"fragments": len(fragments),
		"chars":     b.Len(),
	})

	return Result{Context: b.String(), Fragments: fragments}, nil
}
