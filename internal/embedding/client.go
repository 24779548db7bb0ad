// Package embedding generates vector embeddings for chunk text, batching
// provider calls while preserving input order.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// Model is the OpenAI model used for generating embeddings.
	Model = "text-embedding-3-small"

	// Dimension is the vector size produced by text-embedding-3-small.
	// It must match the vector store's collection configuration.
	Dimension = 1536
)

// Provider is the boundary contract for an embedding backend: one
// fixed-dimension vector per input, order-preserving within a call.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Client implements Provider against the OpenAI embeddings API with
// exponential-backoff retry on rate limits.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI-backed embedding client. An empty API key is an
// error; callers treat that as "collaborator absent" and skip embedding.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &c}, nil
}

// OpenAI returns the underlying client for reuse by the text-generation layer.
func (c *Client) OpenAI() *openai.Client {
	return c.client
}

// Embed generates one embedding per input text. Rate-limit errors (HTTP 429)
// retry with exponential backoff; other errors fail immediately.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("provider returned %d embeddings for %d inputs", len(resp.Data), len(texts)))
		}
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts the API's float64 vectors to float32 for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
