package implementation

import (
	"context"

	"finance-rag-be/internal/model"
	"finance-rag-be/internal/repository/contract"

	"gorm.io/gorm"
)

type IndexGenerationRepositoryImpl struct {
	db *gorm.DB
}

func NewIndexGenerationRepository(db *gorm.DB) contract.IndexGenerationRepository {
	return &IndexGenerationRepositoryImpl{db: db}
}

func (r *IndexGenerationRepositoryImpl) Create(ctx context.Context, generation *model.IndexGeneration) error {
	return r.db.WithContext(ctx).Create(generation).Error
}

func (r *IndexGenerationRepositoryImpl) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.IndexGeneration{}).Error
}

func (r *IndexGenerationRepositoryImpl) FindLatest(ctx context.Context) (*model.IndexGeneration, error) {
	var generations []*model.IndexGeneration
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(1).
		Find(&generations).Error
	if err != nil {
		return nil, err
	}
	if len(generations) == 0 {
		return nil, nil
	}
	return generations[0], nil
}
