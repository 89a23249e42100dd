package unitofwork

import (
	"context"
	"database/sql"
	"fmt"

	"finance-rag-be/internal/repository/contract"
	"finance-rag-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB // nil outside a transaction
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	return u.begin(ctx)
}

func (u *UnitOfWorkImpl) BeginReadOnly(ctx context.Context) error {
	return u.begin(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

func (u *UnitOfWorkImpl) begin(ctx context.Context, opts ...*sql.TxOptions) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	tx := u.db.WithContext(ctx).Begin(opts...)
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) IndexChunkRepository() contract.IndexChunkRepository {
	return implementation.NewIndexChunkRepository(u.getDB())
}

func (u *UnitOfWorkImpl) IndexGenerationRepository() contract.IndexGenerationRepository {
	return implementation.NewIndexGenerationRepository(u.getDB())
}
