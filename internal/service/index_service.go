package service

import (
	"context"
	"errors"

	"finance-rag-be/internal/dto"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/events"
	"finance-rag-be/pkg/rag/pipeline"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/vectorindex"
)

type IIndexService interface {
	Status(ctx context.Context) (*dto.IndexStatusResponse, error)
	// Ingest rebuilds the index from ref outside of a chat request.
	Ingest(ctx context.Context, ref string) (*vectorindex.Generation, error)
}

type indexService struct {
	store     vectorindex.Store
	ingester  pipeline.Ingester
	publisher IPublisherService
	logger    logger.ILogger
}

func NewIndexService(store vectorindex.Store, ingester pipeline.Ingester, publisher IPublisherService, log logger.ILogger) IIndexService {
	return &indexService{
		store:     store,
		ingester:  ingester,
		publisher: publisher,
		logger:    log,
	}
}

func (s *indexService) Status(ctx context.Context) (*dto.IndexStatusResponse, error) {
	gen, err := s.store.Generation(ctx)
	if errors.Is(err, ragerr.ErrIndexUnavailable) {
		return &dto.IndexStatusResponse{Available: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &dto.IndexStatusResponse{Available: true, Generation: &gen}, nil
}

func (s *indexService) Ingest(ctx context.Context, ref string) (*vectorindex.Generation, error) {
	gen, err := s.ingester.Ingest(ctx, ref)
	if err != nil {
		stageErr := &ragerr.StageError{Stage: string(pipeline.StageIngestion), Err: err}
		s.emit(ctx, events.New(events.TypePipelineFailed, map[string]interface{}{
			"stage":  stageErr.Stage,
			"source": ref,
			"error":  err.Error(),
		}))
		return nil, stageErr
	}
	s.emit(ctx, generationEvent(gen))
	return &gen, nil
}

func (s *indexService) emit(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("INDEX", "Failed to publish event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}

func generationEvent(gen vectorindex.Generation) events.Event {
	return events.New(events.TypeDocumentIngested, map[string]interface{}{
		"generation_id": gen.ID.String(),
		"source":        gen.Source,
		"chunk_count":   gen.ChunkCount,
		"built_at":      gen.BuiltAt,
	})
}
