package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

const (
	// EmbeddingModel is the Gemini model used for generating embeddings.
	EmbeddingModel = "gemini-embedding-001"

	// EmbeddingDimension is the requested output dimensionality.
	// This matches storage.VectorDimension (768).
	EmbeddingDimension = 768
)

// TaskType selects the embedding mode. Gemini optimizes document and query
// vectors asymmetrically, so chunks must be indexed with TaskDocument and
// user queries embedded with TaskQuery; the two are only comparable through
// the store's cosine metric.
type TaskType string

const (
	TaskDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskQuery    TaskType = "RETRIEVAL_QUERY"
)

// ErrEmbedding marks a failed embedding request. Ingestion treats it as
// fatal for the whole batch.
var ErrEmbedding = errors.New("embedding request failed")

// Embedder generates embeddings using Gemini with retry on rate limits.
type Embedder struct {
	client *Client
	model  string
}

// NewEmbedder creates a new Embedder with the given client and optional
// model override. An empty model selects EmbeddingModel.
func NewEmbedder(client *Client, model string) *Embedder {
	if model == "" {
		model = EmbeddingModel
	}
	return &Embedder{
		client: client,
		model:  model,
	}
}

// EmbedText generates an embedding for a single text in the given task mode.
// Rate-limit responses are retried with exponential backoff; any other
// failure is permanent and wraps ErrEmbedding.
func (e *Embedder) EmbedText(ctx context.Context, text string, task TaskType) ([]float32, error) {
	var values []float32

	operation := func() error {
		resp, err := e.client.client.Models.EmbedContent(ctx, e.model,
			genai.Text(text),
			&genai.EmbedContentConfig{
				TaskType:             string(task),
				OutputDimensionality: genai.Ptr(int32(EmbeddingDimension)),
			})
		if err != nil {
			if isRateLimitError(err) {
				return err // Will retry with backoff
			}
			return backoff.Permanent(err) // Don't retry
		}

		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return backoff.Permanent(fmt.Errorf("empty embedding response"))
		}
		values = resp.Embeddings[0].Values
		return nil
	}

	// Configure exponential backoff
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	return values, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return false
}
