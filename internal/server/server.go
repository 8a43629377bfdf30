// Package server exposes the chatbot over HTTP: the chat endpoint, a
// dependency health check and the middleware stack around them.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rafidimas/pens-chatbot/internal/composer"
	"github.com/rafidimas/pens-chatbot/internal/retriever"
)

// Retriever looks up grounding context for a user question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (*retriever.Result, error)
}

// Composer turns a question, chat history and context block into an answer.
type Composer interface {
	Compose(ctx context.Context, message string, history []composer.Turn, contextBlock string) (string, error)
}

// Config holds server dependencies.
type Config struct {
	Retriever Retriever
	Composer  Composer
	Store     HealthChecker

	TopK           int
	Env            string
	Model          string
	GeminiAPIKey   string
	AllowedOrigins []string

	RateLimitWindow time.Duration
	RateLimitMax    int

	Logger *slog.Logger
}

// Server wires the HTTP handlers to their dependencies.
type Server struct {
	retriever Retriever
	composer  Composer
	store     HealthChecker

	topK           int
	env            string
	model          string
	allowedOrigins []string

	limiter     *ipRateLimiter
	geminiCheck func(ctx context.Context) error

	logger  *slog.Logger
	started time.Time
}

// New creates a configured Server.
func New(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = retriever.DefaultTopK
	}

	apiKey := cfg.GeminiAPIKey
	return &Server{
		retriever:      cfg.Retriever,
		composer:       cfg.Composer,
		store:          cfg.Store,
		topK:           topK,
		env:            cfg.Env,
		model:          cfg.Model,
		allowedOrigins: cfg.AllowedOrigins,
		limiter:        newIPRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax),
		geminiCheck: func(ctx context.Context) error {
			return checkGemini(ctx, apiKey)
		},
		logger:  logger,
		started: time.Now(),
	}
}

// Routes returns the full handler tree with middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	// Health probes are exempt from the rate limit.
	mux.Handle("POST /api/chat", s.withRateLimit(http.HandlerFunc(s.handleChat)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	var handler http.Handler = mux
	handler = s.withCORS(handler)
	handler = s.withRequestLog(handler)
	return handler
}
