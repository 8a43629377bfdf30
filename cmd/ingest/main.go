// Package main provides the ingestion CLI for the PENS chatbot knowledge base.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rafidimas/pens-chatbot/internal/chunker"
	"github.com/rafidimas/pens-chatbot/internal/config"
	"github.com/rafidimas/pens-chatbot/internal/embedding"
	"github.com/rafidimas/pens-chatbot/internal/ingest"
	"github.com/rafidimas/pens-chatbot/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "pens-ingest",
	Short: "PENS chatbot knowledge base ingestion tool",
	Long:  "CLI tool for managing the PENS admission document index in Qdrant",
}

var sourceFlag string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Index a document into the knowledge base",
	Long: `Extracts text from a PDF, TXT or Markdown file, chunks it, embeds
each chunk and stores the result in Qdrant. Re-ingesting the same
source replaces its previous chunks.

Environment variables:
  GEMINI_API_KEY  Gemini API key for embeddings (required)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var purgeCmd = &cobra.Command{
	Use:   "purge <source>",
	Short: "Remove every chunk of a source from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runPurge,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index size and connectivity",
	RunE:  runStatus,
}

func init() {
	ingestCmd.Flags().StringVar(&sourceFlag, "source", "", "override the source label (default: file base name)")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect(ctx context.Context, cfg *config.Config) (*storage.QdrantStorage, error) {
	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	if err := store.Health(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("Qdrant health check failed: %w", err)
	}
	fmt.Println("Qdrant healthy")

	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	return store, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := embedding.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	embedder := embedding.NewEmbedder(client, cfg.GeminiEmbedModel)

	pipeline := ingest.NewPipeline(
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ChunkMinLen),
		embedder, store, cfg.EmbedDelay, slog.Default())

	fmt.Println()
	fmt.Printf("Ingesting %s...\n", args[0])
	count, err := pipeline.Ingest(ctx, args[0], sourceFlag)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Chunks: %d\n", count)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := store.DeleteBySource(ctx, args[0])
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if len(deleted) == 0 {
		fmt.Printf("No chunks found for source %q\n", args[0])
		return nil
	}
	fmt.Printf("Removed %d chunks of source %q\n", len(deleted), args[0])
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to read collection info: %w", err)
	}

	fmt.Println()
	fmt.Printf("Collection: %s\n", cfg.QdrantCollection)
	fmt.Printf("  Points: %d\n", count)
	return nil
}
