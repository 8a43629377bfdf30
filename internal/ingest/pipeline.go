// Package ingest orchestrates document ingestion: extract, chunk, embed,
// purge stale records, and write fresh ones to the vector store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/rafidimas/pens-chatbot/internal/chunker"
	"github.com/rafidimas/pens-chatbot/internal/embedding"
	"github.com/rafidimas/pens-chatbot/internal/extract"
	"github.com/rafidimas/pens-chatbot/internal/storage"
)

// DefaultEmbedDelay paces per-chunk embedding calls. The free Gemini tier
// throttles aggressively; one request per 200ms stays under it.
const DefaultEmbedDelay = 200 * time.Millisecond

// Embedder generates a document-mode vector for one chunk text.
type Embedder interface {
	EmbedText(ctx context.Context, text string, task embedding.TaskType) ([]float32, error)
}

// Store is the slice of the vector store the pipeline needs.
type Store interface {
	UpsertChunks(ctx context.Context, chunks []*storage.Chunk) error
	DeleteBySource(ctx context.Context, source string) ([]string, error)
}

// Pipeline runs the full ingestion for one source document. It must not be
// run concurrently for the same source: purge-then-write is not
// transactional, and a lost delete would leave orphaned chunks behind.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder Embedder
	store    Store
	limiter  *rate.Limiter
	logger   *slog.Logger

	// extractFile is swappable so tests can feed synthetic documents.
	extractFile func(path string) (*extract.Document, error)
}

// NewPipeline creates an ingestion pipeline. A non-positive embedDelay falls
// back to DefaultEmbedDelay.
func NewPipeline(c *chunker.Chunker, embedder Embedder, store Store, embedDelay time.Duration, logger *slog.Logger) *Pipeline {
	if embedDelay <= 0 {
		embedDelay = DefaultEmbedDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:     c,
		embedder:    embedder,
		store:       store,
		limiter:     rate.NewLimiter(rate.Every(embedDelay), 1),
		logger:      logger,
		extractFile: extract.File,
	}
}

// Ingest processes the document at path into the store and returns the
// number of chunks written. A non-empty source overrides the file-name
// grouping key. The run is all-or-nothing: every chunk is embedded before
// anything is purged or written, so an embedding failure leaves the store
// untouched. Re-ingesting the same document is idempotent: existing records
// for the source are purged first, and the final state depends only on the
// current document content.
func (p *Pipeline) Ingest(ctx context.Context, path, source string) (int, error) {
	start := time.Now()

	doc, err := p.extractFile(path)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	if source == "" {
		source = doc.Source
	}
	p.logger.Info("Extracted document", "source", source, "pages", doc.Pages, "chars", len(doc.Text))

	chunks := p.chunker.Split(doc.Text, source)
	p.logger.Info("Chunked document", "source", source, "chunks", len(chunks))

	records := make([]*storage.Chunk, len(chunks))
	for i, ch := range chunks {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("embedding paused: %w", err)
		}

		vec, err := p.embedder.EmbedText(ctx, ch.Text, embedding.TaskDocument)
		if err != nil {
			// Abort the whole batch; nothing has been written yet.
			return 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}

		records[i] = &storage.Chunk{
			ID:        storage.PointID(ch.Source, ch.Index),
			Source:    ch.Source,
			Index:     ch.Index,
			Text:      ch.Text,
			CharStart: ch.CharStart,
			CharEnd:   ch.CharEnd,
			Embedding: vec,
		}

		if (i+1)%10 == 0 || i == len(chunks)-1 {
			p.logger.Info("Embedding progress", "done", i+1, "total", len(chunks))
		}
	}

	// Purge before write: deterministic ids only overwrite records that
	// still exist in the new chunking. Without the purge, a shrinking chunk
	// count would strand stale records under the same source.
	deleted, err := p.store.DeleteBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("purge existing chunks: %w", err)
	}
	if len(deleted) > 0 {
		p.logger.Info("Purged stale chunks for re-ingest", "source", source, "count", len(deleted))
	}

	if err := p.store.UpsertChunks(ctx, records); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	p.logger.Info("Ingested document",
		"source", source,
		"chunks", len(records),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return len(records), nil
}
