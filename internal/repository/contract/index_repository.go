package contract

import (
	"context"

	"finance-rag-be/internal/model"

	"github.com/google/uuid"
)

// ScoredIndexChunk wraps IndexChunk with its similarity score
type ScoredIndexChunk struct {
	Chunk      *model.IndexChunk
	Similarity float64 // cosine similarity, 1.0 = identical
}

type IndexChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*model.IndexChunk) error
	DeleteAll(ctx context.Context) error
	CountByGeneration(ctx context.Context, generationId uuid.UUID) (int64, error)
	// SearchSimilarWithScore ranks the chunks of one generation, no score threshold
	SearchSimilarWithScore(ctx context.Context, generationId uuid.UUID, embedding []float32, limit int) ([]*ScoredIndexChunk, error)
}

type IndexGenerationRepository interface {
	Create(ctx context.Context, generation *model.IndexGeneration) error
	DeleteAll(ctx context.Context) error
	// FindLatest returns nil, nil when the index was never built
	FindLatest(ctx context.Context) (*model.IndexGeneration, error)
}
