// Package config loads and validates all environment-backed settings.
// Missing required values fail at startup rather than erroring mysteriously
// mid-request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rafidimas/pens-chatbot/internal/chunker"
	"github.com/rafidimas/pens-chatbot/internal/composer"
	"github.com/rafidimas/pens-chatbot/internal/embedding"
	"github.com/rafidimas/pens-chatbot/internal/ingest"
	"github.com/rafidimas/pens-chatbot/internal/storage"
)

// Config holds every runtime setting.
type Config struct {
	// Server
	Port string
	Env  string

	// CORS
	AllowedOrigins []string

	// Gemini
	GeminiAPIKey     string
	GeminiModel      string
	GeminiEmbedModel string

	// Qdrant
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	// Chunking
	ChunkSize    int
	ChunkOverlap int
	ChunkMinLen  int

	// Retrieval
	TopK int

	// Ingestion pacing
	EmbedDelay time.Duration

	// Rate limiting
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// Load reads configuration from the environment. GEMINI_API_KEY is the only
// required value; everything else has a development-friendly default.
func Load() (*Config, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing required environment variable: GEMINI_API_KEY")
	}

	cfg := &Config{
		Port: getEnv("PORT", "3000"),
		Env:  getEnv("APP_ENV", "development"),

		AllowedOrigins: splitOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),

		GeminiAPIKey:     apiKey,
		GeminiModel:      getEnv("GEMINI_MODEL", composer.GenerationModel),
		GeminiEmbedModel: getEnv("GEMINI_EMBED_MODEL", embedding.EmbeddingModel),

		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantCollection: getEnv("QDRANT_COLLECTION", storage.DefaultCollection),

		ChunkSize:    getEnvInt("CHUNK_SIZE", chunker.DefaultChunkSize),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", chunker.DefaultOverlap),
		ChunkMinLen:  getEnvInt("CHUNK_MIN_LEN", chunker.DefaultMinLen),

		TopK: getEnvInt("RETRIEVAL_TOP_K", 3),

		EmbedDelay: getEnvDuration("EMBED_DELAY", ingest.DefaultEmbedDelay),

		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 10),
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// splitOrigins parses the comma-separated ALLOWED_ORIGINS value.
func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
