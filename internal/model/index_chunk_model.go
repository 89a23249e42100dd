package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// IndexGeneration records one successful build of the similarity index.
// The table holds at most one row: a rebuild deletes the previous one.
type IndexGeneration struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Source     string    `gorm:"type:text"`
	ChunkCount int       `gorm:"default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (IndexGeneration) TableName() string {
	return "index_generations"
}

type IndexChunk struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	GenerationId   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChunkIndex     int             `gorm:"default:0"` // 0-based, preserves split order
	Source         string          `gorm:"type:text"`
	Document       string          `gorm:"type:text"`
	Metadata       datatypes.JSON  `gorm:"type:jsonb"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector"` // dimension depends on the embedding model
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (IndexChunk) TableName() string {
	return "index_chunks"
}
