// Package retriever answers "what do we know about this?": it embeds a user
// query, finds the nearest stored chunks, and formats them into a bounded
// context block for grounded generation.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rafidimas/pens-chatbot/internal/embedding"
	"github.com/rafidimas/pens-chatbot/internal/storage"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 3

// blockSeparator joins context blocks so the model can tell documents apart.
const blockSeparator = "\n\n---\n\n"

// Embedder generates a query-mode vector for the user's question.
type Embedder interface {
	EmbedText(ctx context.Context, text string, task embedding.TaskType) ([]float32, error)
}

// Store is the slice of the vector store the retriever needs.
type Store interface {
	Search(ctx context.Context, vector []float32, topK int) ([]*storage.ScoredChunk, error)
}

// Source identifies one retrieved chunk for logging and API responses.
type Source struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"` // cosine similarity, 1 - distance
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunkIndex"`
	Page       int     `json:"page,omitempty"`
}

// Result is the outcome of one retrieval. An empty Context with no Sources
// is a normal outcome (empty store): the caller degrades to ungrounded
// generation instead of failing the chat turn.
type Result struct {
	Context string
	Sources []Source
}

// Retriever looks up relevant chunks for a query.
type Retriever struct {
	embedder Embedder
	store    Store
	logger   *slog.Logger
}

// New creates a Retriever.
func New(embedder Embedder, store Store, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Retrieve embeds the query in query mode and returns the topK most relevant
// chunks as a labeled context block plus a ranked source list. Results keep
// the store's native relevance order (closest first); no re-sorting. A
// non-positive topK selects DefaultTopK.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (*Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.EmbedText(ctx, query, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if len(hits) == 0 {
		r.logger.Warn("No documents found", "query", truncate(query, 80))
		return &Result{}, nil
	}

	blocks := make([]string, 0, len(hits))
	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		blocks = append(blocks, formatBlock(hit.Chunk))
		sources = append(sources, Source{
			ID:         hit.Chunk.ID,
			Score:      1 - hit.Distance, // cosine: similarity = 1 - distance
			Source:     hit.Chunk.Source,
			ChunkIndex: hit.Chunk.Index,
			Page:       hit.Chunk.Page,
		})
	}

	r.logger.Info("Context retrieved",
		"query", truncate(query, 80),
		"docsFound", len(hits),
		"topScore", fmt.Sprintf("%.3f", sources[0].Score),
	)

	return &Result{
		Context: strings.Join(blocks, blockSeparator),
		Sources: sources,
	}, nil
}

// formatBlock labels a chunk with its source document and page so the model
// can cite where an answer came from.
func formatBlock(chunk *storage.Chunk) string {
	source := chunk.Source
	if source == "" {
		source = "Dokumen"
	}
	if chunk.Page > 0 {
		return fmt.Sprintf("[%s Hal. %d]\n%s", source, chunk.Page, chunk.Text)
	}
	return fmt.Sprintf("[%s]\n%s", source, chunk.Text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
