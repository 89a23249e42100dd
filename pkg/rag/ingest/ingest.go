// Package ingest loads a tabular document, chunks it, embeds the chunks and
// replaces the similarity index with them.
package ingest

import (
	"context"
	"fmt"
	"time"

	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/embedding"
	"finance-rag-be/pkg/loader"
	"finance-rag-be/pkg/lock"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/utils"
	"finance-rag-be/pkg/vectorindex"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxRecords   = 100
	DefaultConcurrency  = 4
	DefaultEmbedTimeout = 60 * time.Second
)

type Config struct {
	// MaxRecords caps how many leading records are embedded. Zero or less means DefaultMaxRecords.
	MaxRecords   int
	Concurrency  int
	EmbedTimeout time.Duration
}

type Stage struct {
	loader   loader.Loader
	splitter *utils.RecursiveSplitter
	embedder embedding.EmbeddingProvider
	store    vectorindex.Store
	locker   lock.Locker
	logger   logger.ILogger
	cfg      Config
}

func NewStage(
	ld loader.Loader,
	splitter *utils.RecursiveSplitter,
	embedder embedding.EmbeddingProvider,
	store vectorindex.Store,
	locker lock.Locker,
	log logger.ILogger,
	cfg Config,
) *Stage {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Stage{
		loader:   ld,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		locker:   locker,
		logger:   log,
		cfg:      cfg,
	}
}

// Ingest replaces the whole index with the chunks of the document at ref.
// On failure the previous index is left untouched.
func (s *Stage) Ingest(ctx context.Context, ref string) (vectorindex.Generation, error) {
	start := time.Now()

	records, err := s.loader.Load(ref)
	if err != nil {
		return vectorindex.Generation{}, err
	}

	total := len(records)
	if total > s.cfg.MaxRecords {
		records = records[:s.cfg.MaxRecords]
		s.logger.Warn("INGEST", "Record cap reached, embedding prefix only", map[string]interface{}{
			"document": ref,
			"records":  total,
			"embedded": s.cfg.MaxRecords,
		})
	}

	chunks := s.chunk(ref, records)
	if len(chunks) == 0 {
		return vectorindex.Generation{}, &ragerr.DocumentParseError{Ref: ref, Reason: "document contains no text"}
	}

	held, err := s.locker.Lock(ctx)
	if err != nil {
		return vectorindex.Generation{}, fmt.Errorf("acquire ingestion lock: %w", err)
	}
	defer func() {
		if err := held.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("INGEST", "Failed to release ingestion lock", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := s.embed(ctx, chunks); err != nil {
		return vectorindex.Generation{}, err
	}

	gen, err := s.store.Replace(ctx, ref, chunks)
	if err != nil {
		return vectorindex.Generation{}, err
	}

	s.logger.Info("INGEST", "Index rebuilt", map[string]interface{}{
		"document":   ref,
		"records":    len(records),
		"chunks":     len(chunks),
		"generation": gen.ID.String(),
		"duration":   time.Since(start).String(),
	})
	return gen, nil
}

func (s *Stage) chunk(ref string, records []loader.Record) []vectorindex.Chunk {
	var chunks []vectorindex.Chunk
	for _, rec := range records {
		for _, text := range s.splitter.SplitText(rec.Content) {
			metadata := make(map[string]string, len(rec.Metadata))
			for k, v := range rec.Metadata {
				metadata[k] = v
			}
			chunks = append(chunks, vectorindex.Chunk{
				ID:       uuid.NewString(),
				Index:    len(chunks),
				Source:   ref,
				Text:     text,
				Metadata: metadata,
			})
		}
	}
	return chunks
}

func (s *Stage) embed(ctx context.Context, chunks []vectorindex.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := range chunks {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, s.cfg.EmbedTimeout)
			defer cancel()

			resp, err := s.embedder.Generate(callCtx, chunks[i].Text, embedding.TaskRetrievalDocument)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ragerr.Upstream("embedding service", err)
			}
			chunks[i].Vector = resp.Embedding.Values
			return nil
		})
	}
	return g.Wait()
}
