package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"finance-rag-be/internal/config"
	"finance-rag-be/internal/controller"
	"finance-rag-be/internal/handler"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/internal/repository"
	"finance-rag-be/internal/repository/memory"
	"finance-rag-be/internal/repository/unitofwork"
	"finance-rag-be/internal/service"
	"finance-rag-be/internal/websocket"
	"finance-rag-be/pkg/database"
	"finance-rag-be/pkg/embedding"
	"finance-rag-be/pkg/llm/factory"
	"finance-rag-be/pkg/loader"
	"finance-rag-be/pkg/lock"
	pktNats "finance-rag-be/pkg/nats"
	"finance-rag-be/pkg/rag/ingest"
	"finance-rag-be/pkg/rag/pipeline"
	"finance-rag-be/pkg/rag/reason"
	"finance-rag-be/pkg/rag/retrieve"
	"finance-rag-be/pkg/tools"
	"finance-rag-be/pkg/tools/remote"
	"finance-rag-be/pkg/utils"
	"finance-rag-be/pkg/vectorindex"
	vectormemory "finance-rag-be/pkg/vectorindex/memory"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const ingestLockKey = "finance-rag:ingest-lock"

type Container struct {
	// Controllers
	ChatController  controller.IChatController
	IndexController controller.IIndexController
	ToolController  controller.IToolController

	// WebSockets
	ChatSocketHandler *handler.ChatSocketHandler
	WebSocketHub      *websocket.Hub

	// Background Services (Exposed for main.go to run)
	ConsumerService     service.IConsumerService
	NotificationService *service.NotificationService
	Watcher             *ingest.Watcher

	Orchestrator *pipeline.Orchestrator
	Logger       logger.ILogger

	closers []func()
}

func NewContainer(cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Shared infrastructure
	rdb := newRedisClient(cfg.App.RedisURL, sysLogger)
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	store, err := newIndexStore(cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	embedBaseURL, embedKey := embeddingEndpoint(cfg)
	embedder, err := embedding.NewEmbeddingProvider(
		cfg.Ai.EmbeddingProvider,
		embedBaseURL,
		cfg.Ai.EmbeddingModel,
		embedKey,
		cfg.Pipeline.EmbedTimeout,
	)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	llmBaseURL := cfg.Ai.LLMBaseURL
	if cfg.Ai.LLMProvider == "ollama" && llmBaseURL == "" {
		llmBaseURL = cfg.Ai.OllamaBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, llmBaseURL, cfg.Keys.LLM, cfg.Pipeline.ModelTimeout)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	var catalog tools.Catalog = tools.NewFinanceRegistry()
	if cfg.Ai.ToolServerURL != "" {
		catalog = remote.NewClient(cfg.Ai.ToolServerURL, cfg.Pipeline.ToolTimeout)
		sysLogger.Info("BOOTSTRAP", "Using remote tool catalog", map[string]interface{}{"url": cfg.Ai.ToolServerURL})
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Index.Lock == "redis" {
		if rdb == nil {
			return nil, fmt.Errorf("INGEST_LOCK=redis requires REDIS_URL")
		}
		locker = lock.NewRedisLocker(rdb, ingestLockKey, cfg.Index.LockTTL)
	}

	splitter, err := utils.NewRecursiveSplitter(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	// 2. Pipeline
	ingestStage := ingest.NewStage(loader.NewCSVLoader(), splitter, embedder, store, locker, sysLogger, ingest.Config{
		MaxRecords:   cfg.Pipeline.MaxRecords,
		Concurrency:  cfg.Pipeline.EmbedConcurrency,
		EmbedTimeout: cfg.Pipeline.EmbedTimeout,
	})
	retrieveStage := retrieve.NewStage(embedder, store, sysLogger, retrieve.Config{
		TopK:    cfg.Pipeline.TopK,
		Timeout: cfg.Pipeline.EmbedTimeout,
	})
	toolLogger := isolatedLogger(cfg, "tools.log", sysLogger)
	reasonStage := reason.NewStage(llmProvider, catalog, toolLogger, reason.Config{
		MaxToolCalls: cfg.Pipeline.MaxToolCalls,
		ModelTimeout: cfg.Pipeline.ModelTimeout,
		ToolTimeout:  cfg.Pipeline.ToolTimeout,
		Temperature:  cfg.Pipeline.Temperature,
	})
	c.Orchestrator = pipeline.NewOrchestrator(ingestStage, retrieveStage, reasonStage, sysLogger, pipeline.Config{
		IngestionTimeout: cfg.Pipeline.IngestionTimeout,
		RetrievalTimeout: cfg.Pipeline.RetrievalTimeout,
		ReasoningTimeout: cfg.Pipeline.ReasoningTimeout,
	})

	// 3. Event Bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, NewWatermillLogger(sysLogger))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	var forwarder service.EventForwarder
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			forwarder = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// WebSocket Hub
	wsLogger := isolatedLogger(cfg, "websocket.log", sysLogger)
	c.WebSocketHub = websocket.NewHub(rdb, uuid.NewString(), wsLogger)

	if forwarder != nil {
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.NotificationService = service.NewNotificationService(natsSub, c.WebSocketHub, wsLogger)
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// The consumer notifies the hub itself until the bus relay is running.
	var relay service.RelayStatus
	if c.NotificationService != nil {
		relay = c.NotificationService
	}

	publisherService := service.NewPublisherService(cfg.App.EventsTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.App.EventsTopic, forwarder, c.WebSocketHub, relay, sysLogger)

	// 4. Services
	sessionRepo := memory.NewSessionRepository(cfg.App.SessionTTL)
	chatService := service.NewChatService(c.Orchestrator, sessionRepo, publisherService, cfg.App.UploadDir, sysLogger)
	indexService := service.NewIndexService(store, ingestStage, publisherService, sysLogger)
	toolService := service.NewToolService(catalog)

	if cfg.Index.WatchDir != "" {
		c.Watcher = ingest.NewWatcher(cfg.Index.WatchDir, func(ctx context.Context, path string) error {
			_, err := indexService.Ingest(ctx, path)
			return err
		}, sysLogger, 0)
	}

	// 5. Controllers
	c.ChatController = controller.NewChatController(chatService)
	c.IndexController = controller.NewIndexController(indexService)
	c.ToolController = controller.NewToolController(toolService)
	c.ChatSocketHandler = handler.NewChatSocketHandler(chatService, c.WebSocketHub, wsLogger)

	return c, nil
}

// Start launches the background workers. It returns once they are running;
// the workers stop when ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	if c.NotificationService != nil {
		if err := c.NotificationService.Start(ctx); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Notification relay disabled", map[string]interface{}{"error": err.Error()})
		} else {
			c.closers = append(c.closers, c.NotificationService.Stop)
		}
	}
	if c.Watcher != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return c.Watcher.Run(gctx) })
		go func() {
			if err := g.Wait(); err != nil {
				c.Logger.Error("BOOTSTRAP", "Inbox watcher stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func newIndexStore(cfg *config.Config, log logger.ILogger) (vectorindex.Store, error) {
	switch cfg.Index.Store {
	case "memory":
		if dir := parentDir(cfg.Index.SnapshotPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("index snapshot dir: %w", err)
			}
		}
		return vectormemory.NewStore(cfg.Index.SnapshotPath)
	case "pgvector":
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, log)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		return repository.NewPgvectorIndexStore(unitofwork.NewRepositoryFactory(db), log), nil
	default:
		return nil, fmt.Errorf("unsupported index store: %s", cfg.Index.Store)
	}
}

func newRedisClient(url string, log logger.ILogger) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Warn("BOOTSTRAP", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	return rdb
}

// embeddingEndpoint picks the base URL and key that match the configured
// embedding provider.
func embeddingEndpoint(cfg *config.Config) (string, string) {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		return firstNonEmpty(cfg.Ai.EmbeddingBaseURL, cfg.Ai.OllamaBaseURL), ""
	case "gemini":
		return "", firstNonEmpty(cfg.Keys.Embedding, cfg.Keys.GoogleGemini)
	default:
		return cfg.Ai.EmbeddingBaseURL, firstNonEmpty(cfg.Keys.Embedding, cfg.Keys.LLM)
	}
}

// isolatedLogger writes to its own file next to the main log, or falls back
// to the main logger when file logging is off.
func isolatedLogger(cfg *config.Config, name string, fallback logger.ILogger) logger.ILogger {
	if cfg.App.LogFilePath == "" {
		return fallback
	}
	return logger.NewIsolatedLogger(filepath.Join(filepath.Dir(cfg.App.LogFilePath), name))
}

func parentDir(path string) string {
	if path == "" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
