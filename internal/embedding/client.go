// Package embedding wraps the Gemini API for task-typed text embeddings.
package embedding

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// Client wraps the Gemini client for embedding generation.
type Client struct {
	client *genai.Client
}

// NewClient creates a new Gemini client. It reads GEMINI_API_KEY from the
// environment and returns an error if not set.
func NewClient(ctx context.Context) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{client: client}, nil
}

// Client returns the underlying Gemini client for use in other packages
// (e.g. response composition).
func (c *Client) Client() *genai.Client {
	return c.client
}
