package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	SMTP      SMTPConfig
	Keys      APIKeys
	Ai        AIConfig
	Rag       RagConfig
	Retention RetentionConfig
	Prompts   PromptConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	CronSecret         string
	OtelEnabled        bool
	OtelEndpoint       string
	OtelSampleRatio    float64
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
	// Operators receiving the retention report. Empty disables the mail.
	ReportRecipients []string
}

type APIKeys struct {
	GoogleGemini string
	OpenAI       string
}

type AIConfig struct {
	EmbeddingProvider  string // "ollama", "gemini" or "openai"
	EmbeddingModel     string
	EmbeddingDimension int
	LLMProvider        string // "ollama", "gemini" or "openai"
	LLMModel           string
	OllamaBaseURL      string
	OpenAIBaseURL      string
	Temperature        float64
	CallTimeout        time.Duration
	RequestsPerSecond  float64

	// OAuth2 client credentials for an OpenAI compatible gateway.
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string
	OAuthScopes       []string
}

type RagConfig struct {
	TopK             int
	SimilarityFloor  float64
	HistoryWindow    int
	DocumentCacheTTL time.Duration
	IngestTopic      string
	ChunkSize        int
	ChunkOverlap     int
}

type RetentionConfig struct {
	DaysOld          int
	BatchSize        int
	MaxBatches       int
	ScheduleInterval time.Duration
	LockTTL          time.Duration
	PreviewWindow    int // days
}

type PromptConfig struct {
	FallbackPoolFile string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			CronSecret:         getEnv("CRON_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			OtelSampleRatio:    getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:             getEnv("SMTP_HOST", ""),
			Port:             getEnvAsInt("SMTP_PORT", 587),
			Email:            getEnv("SMTP_EMAIL", ""),
			Password:         getEnv("SMTP_PASSWORD", ""),
			SenderName:       getEnv("SMTP_SENDER_NAME", "Coaching RAG"),
			ReportRecipients: getEnvAsList("RETENTION_REPORT_RECIPIENTS"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature:        getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			CallTimeout:        getEnvAsDuration("AI_CALL_TIMEOUT", 20*time.Second),
			RequestsPerSecond:  getEnvAsFloat("AI_REQUESTS_PER_SECOND", 5),
			OAuthClientID:      getEnv("LLM_OAUTH_CLIENT_ID", ""),
			OAuthClientSecret:  getEnv("LLM_OAUTH_CLIENT_SECRET", ""),
			OAuthTokenURL:      getEnv("LLM_OAUTH_TOKEN_URL", ""),
			OAuthScopes:        getEnvAsList("LLM_OAUTH_SCOPES"),
		},
		Rag: RagConfig{
			TopK:             getEnvAsInt("RAG_TOP_K", 5),
			SimilarityFloor:  getEnvAsFloat("RAG_SIMILARITY_FLOOR", 0.30),
			HistoryWindow:    getEnvAsInt("RAG_HISTORY_WINDOW", 10),
			DocumentCacheTTL: getEnvAsDuration("RAG_DOCUMENT_CACHE_TTL", 10*time.Minute),
			IngestTopic:      getEnv("INGEST_DOCUMENT_TOPIC_NAME", "INGEST_DOCUMENT"),
			ChunkSize:        getEnvAsInt("INGEST_CHUNK_SIZE", 1500),
			ChunkOverlap:     getEnvAsInt("INGEST_CHUNK_OVERLAP", 200),
		},
		Retention: RetentionConfig{
			DaysOld:          getEnvAsInt("RETENTION_DAYS_OLD", 30),
			BatchSize:        getEnvAsInt("RETENTION_BATCH_SIZE", 100),
			MaxBatches:       getEnvAsInt("RETENTION_MAX_BATCHES", 10),
			ScheduleInterval: getEnvAsDuration("RETENTION_SCHEDULE_INTERVAL", 0),
			LockTTL:          getEnvAsDuration("RETENTION_LOCK_TTL", 10*time.Minute),
			PreviewWindow:    getEnvAsInt("RETENTION_PREVIEW_WINDOW_DAYS", 7),
		},
		Prompts: PromptConfig{
			FallbackPoolFile: getEnv("PROMPT_FALLBACK_POOL_FILE", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
