// Package main provides the HTTP server entry point for the PENS chatbot.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rafidimas/pens-chatbot/internal/composer"
	"github.com/rafidimas/pens-chatbot/internal/config"
	"github.com/rafidimas/pens-chatbot/internal/embedding"
	"github.com/rafidimas/pens-chatbot/internal/retriever"
	"github.com/rafidimas/pens-chatbot/internal/server"
	"github.com/rafidimas/pens-chatbot/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize storage
	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	// Initialize Gemini client
	client, err := embedding.NewClient(ctx)
	if err != nil {
		log.Fatalf("failed to create Gemini client: %v", err)
	}
	embedder := embedding.NewEmbedder(client, cfg.GeminiEmbedModel)

	ret := retriever.New(embedder, store, logger)
	comp := composer.New(client.Client(), cfg.GeminiModel)

	srv := server.New(&server.Config{
		Retriever:       ret,
		Composer:        comp,
		Store:           store,
		TopK:            cfg.TopK,
		Env:             cfg.Env,
		Model:           cfg.GeminiModel,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		Logger:          logger,
	})

	httpServer := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("PENS chatbot server running",
			"port", cfg.Port,
			"environment", cfg.Env,
			"allowedOrigins", cfg.AllowedOrigins)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
