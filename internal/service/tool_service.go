package service

import (
	"context"

	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/tools"
)

type IToolService interface {
	List(ctx context.Context) ([]tools.ToolSpec, error)
}

type toolService struct {
	catalog tools.Catalog
}

func NewToolService(catalog tools.Catalog) IToolService {
	return &toolService{catalog: catalog}
}

func (s *toolService) List(ctx context.Context) ([]tools.ToolSpec, error) {
	specs, err := s.catalog.List(ctx)
	if err != nil {
		return nil, ragerr.Upstream("tool catalog", err)
	}
	return specs, nil
}
