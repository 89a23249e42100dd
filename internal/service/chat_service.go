package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"finance-rag-be/internal/dto"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/internal/repository/memory"
	"finance-rag-be/pkg/events"
	"finance-rag-be/pkg/rag/pipeline"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// PipelineRunner is satisfied by *pipeline.Orchestrator.
type PipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type IChatService interface {
	Ask(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error)
	// AskWithUpload stores body as a temporary document, answers the query
	// against it and removes the file again.
	AskWithUpload(ctx context.Context, req *dto.ChatRequest, filename string, body io.Reader) (*dto.ChatResponse, error)
	GetSession(ctx context.Context, sessionID string) (*store.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type chatService struct {
	runner      PipelineRunner
	sessionRepo *memory.SessionRepository
	publisher   IPublisherService
	uploadDir   string
	logger      logger.ILogger
}

func NewChatService(
	runner PipelineRunner,
	sessionRepo *memory.SessionRepository,
	publisher IPublisherService,
	uploadDir string,
	log logger.ILogger,
) IChatService {
	return &chatService{
		runner:      runner,
		sessionRepo: sessionRepo,
		publisher:   publisher,
		uploadDir:   uploadDir,
		logger:      log,
	}
}

func (s *chatService) Ask(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.runner.Run(ctx, pipeline.Request{
		Query:       req.Query,
		DocsPresent: req.DocsPresent,
		DocumentRef: req.DocumentRef,
		SessionID:   sessionID,
	})

	turn := store.Turn{
		Query:     req.Query,
		Route:     result.Route.String(),
		Stages:    stageNames(result.Stages),
		ToolCalls: result.ToolCalls,
	}
	if req.DocsPresent {
		turn.Document = filepath.Base(req.DocumentRef)
	}

	if err != nil {
		if errors.Is(err, ragerr.ErrInvalidRequest) {
			return nil, err
		}
		turn.Error = err.Error()
		var stageErr *ragerr.StageError
		if errors.As(err, &stageErr) {
			turn.FailedAt = stageErr.Stage
		}
		s.sessionRepo.AppendTurn(sessionID, turn)
		s.publish(ctx, events.New(events.TypePipelineFailed, map[string]interface{}{
			"session_id": sessionID,
			"route":      turn.Route,
			"stage":      turn.FailedAt,
			"error":      turn.Error,
		}))
		return nil, err
	}

	turn.Answer = result.Answer
	s.sessionRepo.AppendTurn(sessionID, turn)

	if result.Generation != nil {
		s.publish(ctx, generationEvent(*result.Generation))
	}
	s.publish(ctx, events.New(events.TypeQuestionAnswered, map[string]interface{}{
		"session_id":  sessionID,
		"route":       turn.Route,
		"tool_calls":  len(result.ToolCalls),
		"fragments":   result.Fragments,
		"duration_ms": result.Duration.Milliseconds(),
	}))

	return &dto.ChatResponse{
		SessionID:  sessionID,
		Answer:     result.Answer,
		Route:      turn.Route,
		Stages:     turn.Stages,
		ToolCalls:  result.ToolCalls,
		Fragments:  result.Fragments,
		Generation: result.Generation,
		DurationMs: result.Duration.Milliseconds(),
	}, nil
}

func (s *chatService) AskWithUpload(ctx context.Context, req *dto.ChatRequest, filename string, body io.Reader) (*dto.ChatResponse, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	tmp, err := os.CreateTemp(s.uploadDir, "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return nil, fiber.NewError(fiber.StatusBadRequest, "failed to read uploaded file")
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close upload file: %w", err)
	}

	s.logger.Info("CHAT", "Document uploaded", map[string]interface{}{
		"filename": filename,
		"path":     tmp.Name(),
	})

	withDoc := *req
	withDoc.DocsPresent = true
	withDoc.DocumentRef = tmp.Name()
	return s.Ask(ctx, &withDoc)
}

func (s *chatService) GetSession(_ context.Context, sessionID string) (*store.Session, error) {
	session, ok := s.sessionRepo.Get(sessionID)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return session, nil
}

func (s *chatService) DeleteSession(_ context.Context, sessionID string) error {
	if !s.sessionRepo.Delete(sessionID) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	s.logger.Info("CHAT", "Session deleted", map[string]interface{}{"session_id": sessionID})
	return nil
}

// publish never fails the request; events are best effort.
func (s *chatService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("CHAT", "Failed to publish event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}

func stageNames(stages []pipeline.Stage) []string {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = string(st)
	}
	return names
}
