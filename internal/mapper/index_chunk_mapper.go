package mapper

import (
	"encoding/json"

	"finance-rag-be/internal/model"
	"finance-rag-be/pkg/vectorindex"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type IndexChunkMapper struct{}

func NewIndexChunkMapper() *IndexChunkMapper {
	return &IndexChunkMapper{}
}

func (m *IndexChunkMapper) ToChunk(e *model.IndexChunk) vectorindex.Chunk {
	var metadata map[string]string
	if len(e.Metadata) > 0 {
		// metadata is written by ToModel, a decode failure only loses annotations
		_ = json.Unmarshal(e.Metadata, &metadata)
	}
	return vectorindex.Chunk{
		ID:       e.Id.String(),
		Index:    e.ChunkIndex,
		Source:   e.Source,
		Text:     e.Document,
		Metadata: metadata,
		Vector:   e.EmbeddingValue.Slice(),
	}
}

func (m *IndexChunkMapper) ToModel(c vectorindex.Chunk, generationId uuid.UUID) *model.IndexChunk {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		id = uuid.New()
	}
	var metadata datatypes.JSON
	if len(c.Metadata) > 0 {
		if raw, err := json.Marshal(c.Metadata); err == nil {
			metadata = datatypes.JSON(raw)
		}
	}
	return &model.IndexChunk{
		Id:             id,
		GenerationId:   generationId,
		ChunkIndex:     c.Index,
		Source:         c.Source,
		Document:       c.Text,
		Metadata:       metadata,
		EmbeddingValue: pgvector.NewVector(c.Vector),
	}
}

func (m *IndexChunkMapper) ToModels(chunks []vectorindex.Chunk, generationId uuid.UUID) []*model.IndexChunk {
	models := make([]*model.IndexChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c, generationId)
	}
	return models
}

func (m *IndexChunkMapper) ToGeneration(e *model.IndexGeneration) vectorindex.Generation {
	return vectorindex.Generation{
		ID:         e.Id,
		Source:     e.Source,
		ChunkCount: e.ChunkCount,
		BuiltAt:    e.CreatedAt,
	}
}
