package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"medcure.com/assistant/internal/config"
	"medcure.com/assistant/internal/metrics"
)

// Embedder turns text into a fixed-length vector. Every failure wraps
// ErrEmbeddingUnavailable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingClient talks to an OpenAI-compatible /embeddings endpoint.
type EmbeddingClient struct {
	client     *openai.Client
	configured bool
	model      openai.EmbeddingModel
	metrics    *metrics.Metrics
}

var _ Embedder = (*EmbeddingClient)(nil)

func NewEmbeddingClient(cfg config.EmbeddingConfig, m *metrics.Metrics) *EmbeddingClient {
	return &EmbeddingClient{
		client:     newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		configured: cfg.APIKey != "" && cfg.BaseURL != "",
		model:      openai.EmbeddingModel(cfg.Model),
		metrics:    m,
	}
}

// newOpenAIClient builds a go-openai client for any OpenAI-compatible
// backend rooted at baseURL.
func newOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrEmbeddingUnavailable)
	}
	if !c.configured {
		return nil, fmt.Errorf("%w: base url or key not configured", ErrEmbeddingUnavailable)
	}

	start := time.Now()
	vec, err := c.embed(ctx, text)
	c.metrics.ObserveBackend(metrics.BackendEmbedding, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

func (c *EmbeddingClient) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", describeAPIError(err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("response has no data[0].embedding")
	}
	return resp.Data[0].Embedding, nil
}

// describeAPIError adds the HTTP status to errors returned by the backend.
func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %w", apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("status %d: %w", reqErr.HTTPStatusCode, err)
	}
	return err
}
