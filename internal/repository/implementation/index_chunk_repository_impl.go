package implementation

import (
	"context"

	"finance-rag-be/internal/model"
	"finance-rag-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const createBatchSize = 100

type IndexChunkRepositoryImpl struct {
	db *gorm.DB
}

func NewIndexChunkRepository(db *gorm.DB) contract.IndexChunkRepository {
	return &IndexChunkRepositoryImpl{db: db}
}

func (r *IndexChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*model.IndexChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(chunks, createBatchSize).Error
}

func (r *IndexChunkRepositoryImpl) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.IndexChunk{}).Error
}

func (r *IndexChunkRepositoryImpl) CountByGeneration(ctx context.Context, generationId uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.IndexChunk{}).
		Where("generation_id = ?", generationId).
		Count(&count).Error
	return count, err
}

func (r *IndexChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, generationId uuid.UUID, embedding []float32, limit int) ([]*contract.ScoredIndexChunk, error) {
	if limit <= 0 {
		limit = 4
	}

	// Cosine distance in pgvector is 1 - cosine_similarity
	type result struct {
		model.IndexChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("index_chunks").
		Select("index_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("generation_id = ?", generationId).
		Order("similarity DESC, chunk_index ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredIndexChunk, len(results))
	for i := range results {
		chunk := results[i].IndexChunk
		scored[i] = &contract.ScoredIndexChunk{
			Chunk:      &chunk,
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}
