package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"medcure.com/assistant/internal/config"
)

func newTestEmbeddingClient(url string, timeout time.Duration) *EmbeddingClient {
	return NewEmbeddingClient(config.EmbeddingConfig{
		BaseURL: url + "/v1",
		APIKey:  "test-key",
		Model:   "text-embedding-ada-002",
		Timeout: timeout,
	}, nil)
}

func TestEmbeddingClientEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []any{"headache"}, req.Input)
		assert.Equal(t, openai.EmbeddingModel("text-embedding-ada-002"), req.Model)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	vec, err := newTestEmbeddingClient(srv.URL, time.Second).Embed(context.Background(), "headache")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbeddingClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"api error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
		}},
		{"missing vector", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestEmbeddingClient(srv.URL, 50*time.Millisecond).Embed(context.Background(), "q")
			assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
		})
	}
}

func TestEmbeddingClientShortCircuits(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	_, err := newTestEmbeddingClient(srv.URL, time.Second).Embed(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	unconfigured := NewEmbeddingClient(config.EmbeddingConfig{BaseURL: srv.URL}, nil)
	_, err = unconfigured.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	assert.Zero(t, calls)
}
