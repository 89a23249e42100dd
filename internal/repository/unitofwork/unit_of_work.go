package unitofwork

import (
	"context"

	"finance-rag-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	// BeginReadOnly opens a repeatable-read snapshot so a reader never sees a half-replaced index
	BeginReadOnly(ctx context.Context) error
	Commit() error
	Rollback() error

	IndexChunkRepository() contract.IndexChunkRepository
	IndexGenerationRepository() contract.IndexGenerationRepository
}
