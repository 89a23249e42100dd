package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Index    IndexConfig
	Pipeline PipelineConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	UploadDir          string
	EventsTopic        string
	SessionTTL         time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	LLM          string // Groq, OpenAI or any compatible endpoint
	Embedding    string
	GoogleGemini string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama", "openai", "gemini" or "hash"
	EmbeddingBaseURL  string
	EmbeddingModel    string
	OllamaBaseURL     string
	LLMProvider       string // "groq", "openai" or "ollama"
	LLMModel          string
	LLMBaseURL        string
	ToolServerURL     string // empty: tools run in process
}

type IndexConfig struct {
	Store        string // "memory" or "pgvector"
	SnapshotPath string
	Lock         string // "local" or "redis"
	LockTTL      time.Duration
	WatchDir     string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// PipelineConfig holds the tuning knobs. Values from RAG_CONFIG_FILE override
// the environment.
type PipelineConfig struct {
	ChunkSize        int           `yaml:"chunk_size"`
	ChunkOverlap     int           `yaml:"chunk_overlap"`
	MaxRecords       int           `yaml:"max_records"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`
	TopK             int           `yaml:"top_k"`
	MaxToolCalls     int           `yaml:"max_tool_calls"`
	Temperature      float64       `yaml:"temperature"`
	EmbedTimeout     time.Duration `yaml:"embed_timeout"`
	ModelTimeout     time.Duration `yaml:"model_timeout"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	IngestionTimeout time.Duration `yaml:"ingestion_timeout"`
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout"`
	ReasoningTimeout time.Duration `yaml:"reasoning_timeout"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:8501"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			UploadDir:          getEnv("UPLOAD_DIR", os.TempDir()),
			EventsTopic:        getEnv("PIPELINE_EVENTS_TOPIC", "PIPELINE_EVENTS"),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", time.Hour),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			LLM:          getEnv("LLM_API_KEY", os.Getenv("GROQ_API_KEY")),
			Embedding:    getEnv("EMBEDDING_API_KEY", ""),
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", ""),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "llama3.2:1b"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "groq"),
			LLMModel:          getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			ToolServerURL:     getEnv("TOOL_SERVER_URL", ""),
		},
		Index: IndexConfig{
			Store:        getEnv("INDEX_STORE", "memory"),
			SnapshotPath: getEnv("INDEX_SNAPSHOT_PATH", "data/index_snapshot.json"),
			Lock:         getEnv("INGEST_LOCK", "local"),
			LockTTL:      getEnvAsDuration("INGEST_LOCK_TTL", 15*time.Minute),
			WatchDir:     getEnv("INGEST_WATCH_DIR", ""),
		},
		Pipeline: PipelineConfig{
			ChunkSize:        getEnvAsInt("CHUNK_SIZE", 500),
			ChunkOverlap:     getEnvAsInt("CHUNK_OVERLAP", 100),
			MaxRecords:       getEnvAsInt("INGEST_MAX_RECORDS", 100),
			EmbedConcurrency: getEnvAsInt("EMBED_CONCURRENCY", 4),
			TopK:             getEnvAsInt("RETRIEVAL_TOP_K", 4),
			MaxToolCalls:     getEnvAsInt("REASON_MAX_TOOL_CALLS", 5),
			Temperature:      getEnvAsFloat("LLM_TEMPERATURE", 0),
			EmbedTimeout:     getEnvAsDuration("EMBED_TIMEOUT", 60*time.Second),
			ModelTimeout:     getEnvAsDuration("MODEL_TIMEOUT", 120*time.Second),
			ToolTimeout:      getEnvAsDuration("TOOL_TIMEOUT", 10*time.Second),
			IngestionTimeout: getEnvAsDuration("STAGE_TIMEOUT_INGESTION", 10*time.Minute),
			RetrievalTimeout: getEnvAsDuration("STAGE_TIMEOUT_RETRIEVAL", time.Minute),
			ReasoningTimeout: getEnvAsDuration("STAGE_TIMEOUT_REASONING", 5*time.Minute),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "finance-rag-be"),
		},
	}

	if path := getEnv("RAG_CONFIG_FILE", ""); path != "" {
		if err := ApplyPipelineFile(path, &cfg.Pipeline); err != nil {
			log.Fatalf("[FATAL] Failed to load pipeline config: %v", err)
		}
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		log.Fatalf("[FATAL] Invalid pipeline config: %v", err)
	}

	return cfg
}

// ApplyPipelineFile overlays the keys present in a YAML file onto p.
// A missing file is not an error.
func ApplyPipelineFile(path string, p *PipelineConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("[WARN] Pipeline config %s not found, using environment", path)
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (p PipelineConfig) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", p.ChunkSize)
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", p.ChunkOverlap)
	}
	if p.MaxRecords <= 0 {
		return fmt.Errorf("max_records must be positive, got %d", p.MaxRecords)
	}
	if p.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", p.TopK)
	}
	if p.MaxToolCalls <= 0 {
		return fmt.Errorf("max_tool_calls must be positive, got %d", p.MaxToolCalls)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
