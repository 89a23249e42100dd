package repository

import (
	"context"
	"fmt"

	"finance-rag-be/internal/mapper"
	"finance-rag-be/internal/model"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/internal/repository/unitofwork"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/vectorindex"

	"github.com/google/uuid"
)

const pgvectorService = "pgvector index"

// PgvectorIndexStore keeps the similarity index in postgres. Replace runs in a
// single transaction so readers see either the old or the new generation.
type PgvectorIndexStore struct {
	uowFactory unitofwork.RepositoryFactory
	mapper     *mapper.IndexChunkMapper
	logger     logger.ILogger
}

func NewPgvectorIndexStore(uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) *PgvectorIndexStore {
	return &PgvectorIndexStore{
		uowFactory: uowFactory,
		mapper:     mapper.NewIndexChunkMapper(),
		logger:     logger,
	}
}

var _ vectorindex.Store = (*PgvectorIndexStore)(nil)

func (s *PgvectorIndexStore) Replace(ctx context.Context, source string, chunks []vectorindex.Chunk) (vectorindex.Generation, error) {
	if err := ctx.Err(); err != nil {
		return vectorindex.Generation{}, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return vectorindex.Generation{}, ragerr.Upstream(pgvectorService, err)
	}
	defer uow.Rollback()

	if err := uow.IndexChunkRepository().DeleteAll(ctx); err != nil {
		return vectorindex.Generation{}, ragerr.Upstream(pgvectorService, fmt.Errorf("clear chunks: %w", err))
	}
	if err := uow.IndexGenerationRepository().DeleteAll(ctx); err != nil {
		return vectorindex.Generation{}, ragerr.Upstream(pgvectorService, fmt.Errorf("clear generations: %w", err))
	}

	generation := &model.IndexGeneration{
		Id:         uuid.New(),
		Source:     source,
		ChunkCount: len(chunks),
	}
	if err := uow.IndexGenerationRepository().Create(ctx, generation); err != nil {
		return vectorindex.Generation{}, ragerr.Upstream(pgvectorService, fmt.Errorf("create generation: %w", err))
	}
	if err := uow.IndexChunkRepository().CreateBulk(ctx, s.mapper.ToModels(chunks, generation.Id)); err != nil {
		return vectorindex.Generation{}, ragerr.Upstream(pgvectorService, fmt.Errorf("insert chunks: %w", err))
	}
	stored, err := uow.IndexChunkRepository().CountByGeneration(ctx, generation.Id)
	if err != nil {
		return vectorindex.Generation{}, ragerr.Upstream(pgvectorService, fmt.Errorf("count chunks: %w", err))
	}
	if stored != int64(generation.ChunkCount) {
		return vectorindex.Generation{}, fmt.Errorf("generation %s stored %d of %d chunks", generation.Id, stored, generation.ChunkCount)
	}

	if err := uow.Commit(); err != nil {
		return vectorindex.Generation{}, ragerr.Upstream(pgvectorService, err)
	}

	s.logger.Info("INDEX", "pgvector index replaced", map[string]interface{}{
		"generation": generation.Id.String(),
		"source":     source,
		"chunks":     len(chunks),
	})

	return s.mapper.ToGeneration(generation), nil
}

func (s *PgvectorIndexStore) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.ScoredChunk, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.BeginReadOnly(ctx); err != nil {
		return nil, ragerr.Upstream(pgvectorService, err)
	}
	defer uow.Rollback()

	generation, err := uow.IndexGenerationRepository().FindLatest(ctx)
	if err != nil {
		return nil, ragerr.Upstream(pgvectorService, err)
	}
	if generation == nil {
		return nil, ragerr.ErrIndexUnavailable
	}

	scored, err := uow.IndexChunkRepository().SearchSimilarWithScore(ctx, generation.Id, vector, k)
	if err != nil {
		return nil, ragerr.Upstream(pgvectorService, err)
	}

	results := make([]vectorindex.ScoredChunk, len(scored))
	for i, sc := range scored {
		results[i] = vectorindex.ScoredChunk{
			Chunk: s.mapper.ToChunk(sc.Chunk),
			Score: sc.Similarity,
		}
	}
	return results, nil
}

func (s *PgvectorIndexStore) Generation(ctx context.Context) (vectorindex.Generation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	generation, err := uow.IndexGenerationRepository().FindLatest(ctx)
	if err != nil {
		return vectorindex.Generation{}, ragerr.Upstream(pgvectorService, err)
	}
	if generation == nil {
		return vectorindex.Generation{}, ragerr.ErrIndexUnavailable
	}
	return s.mapper.ToGeneration(generation), nil
}
