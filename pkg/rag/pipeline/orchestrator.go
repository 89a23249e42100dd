// Package pipeline routes a request through ingestion, retrieval and reasoning.
package pipeline

import (
	"context"
	"time"

	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/rag/reason"
	"finance-rag-be/pkg/rag/retrieve"
	"finance-rag-be/pkg/vectorindex"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultIngestionTimeout = 10 * time.Minute
	DefaultRetrievalTimeout = time.Minute
	DefaultReasoningTimeout = 5 * time.Minute
)

type Ingester interface {
	Ingest(ctx context.Context, ref string) (vectorindex.Generation, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) (retrieve.Result, error)
}

type Responder interface {
	Respond(ctx context.Context, query, contextBlob string) (reason.Answer, error)
}

type Config struct {
	IngestionTimeout time.Duration
	RetrievalTimeout time.Duration
	ReasoningTimeout time.Duration
}

// Result describes a finished run. Stages lists every state visited, START
// and END included.
type Result struct {
	Answer     string
	Route      Route
	Stages     []Stage
	State      SessionState
	ToolCalls  []reason.ToolUse
	Fragments  int
	Generation *vectorindex.Generation // set when this run rebuilt the index
	Duration   time.Duration
}

type Orchestrator struct {
	ingester  Ingester
	retriever Retriever
	responder Responder
	logger    logger.ILogger
	tracer    trace.Tracer
	cfg       Config
}

func NewOrchestrator(ingester Ingester, retriever Retriever, responder Responder, log logger.ILogger, cfg Config) *Orchestrator {
	if cfg.IngestionTimeout <= 0 {
		cfg.IngestionTimeout = DefaultIngestionTimeout
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = DefaultRetrievalTimeout
	}
	if cfg.ReasoningTimeout <= 0 {
		cfg.ReasoningTimeout = DefaultReasoningTimeout
	}
	return &Orchestrator{
		ingester:  ingester,
		retriever: retriever,
		responder: responder,
		logger:    log,
		tracer:    otel.Tracer("finance-rag-be/pipeline"),
		cfg:       cfg,
	}
}

// Run executes one request. Any stage failure aborts the run without retry and
// comes back as a *ragerr.StageError; the partially filled Result is returned
// alongside it for logging.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	start := time.Now()

	state := NewSessionState(req)
	route := DecideRoute(state.DocsPresent)
	state.DocsPresent = false

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.route", route.String()),
		attribute.String("pipeline.session_id", req.SessionID),
	))
	defer span.End()

	result := Result{Route: route, Stages: []Stage{StageStart}}
	o.logger.Info("PIPELINE", "Run started", map[string]interface{}{
		"route":      route.String(),
		"session_id": req.SessionID,
	})

	for _, stage := range route.Plan() {
		result.Stages = append(result.Stages, stage)
		if err := o.runStage(ctx, stage, req, &state, &result); err != nil {
			stageErr := &ragerr.StageError{Stage: string(stage), Err: err}
			span.RecordError(stageErr)
			span.SetStatus(codes.Error, stageErr.Error())
			o.logger.Error("PIPELINE", "Run aborted", map[string]interface{}{
				"stage":      string(stage),
				"session_id": req.SessionID,
				"error":      err.Error(),
			})
			result.State = state
			result.Duration = time.Since(start)
			return result, stageErr
		}
	}

	result.Stages = append(result.Stages, StageEnd)
	result.State = state
	result.Answer = state.Last().Content
	result.Duration = time.Since(start)

	o.logger.Info("PIPELINE", "Run finished", map[string]interface{}{
		"route":      route.String(),
		"session_id": req.SessionID,
		"tool_calls": len(result.ToolCalls),
		"duration":   result.Duration.String(),
	})
	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, req Request, state *SessionState, result *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout(stage))
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "pipeline."+string(stage))
	defer span.End()

	stageStart := time.Now()
	var err error
	switch stage {
	case StageIngestion:
		var gen vectorindex.Generation
		gen, err = o.ingester.Ingest(ctx, req.DocumentRef)
		if err == nil {
			result.Generation = &gen
			span.SetAttributes(attribute.Int("index.chunks", gen.ChunkCount))
		}

	case StageRetrieval:
		var retrieved retrieve.Result
		retrieved, err = o.retriever.Retrieve(ctx, state.Query)
		if err == nil {
			state.Append(RoleContext, retrieved.Context)
			result.Fragments = len(retrieved.Fragments)
			span.SetAttributes(attribute.Int("retrieval.fragments", result.Fragments))
		}

	case StageReasoning:
		var answer reason.Answer
		answer, err = o.responder.Respond(ctx, state.Query, state.Last().Content)
		if err == nil {
			state.Append(RoleAssistant, answer.Content)
			result.ToolCalls = answer.ToolCalls
			span.SetAttributes(attribute.Int("reasoning.tool_calls", len(answer.ToolCalls)))
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	o.logger.Debug("PIPELINE", "[STAGE] "+string(stage)+" done", map[string]interface{}{
		"session_id": req.SessionID,
		"duration":   time.Since(stageStart).String(),
	})
	return nil
}

func (o *Orchestrator) timeout(stage Stage) time.Duration {
	switch stage {
	case StageIngestion:
		return o.cfg.IngestionTimeout
	case StageRetrieval:
		return o.cfg.RetrievalTimeout
	default:
		return o.cfg.ReasoningTimeout
	}
}
