package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"medcure.com/assistant/internal/config"
	"medcure.com/assistant/internal/metrics"
)

// GeminiService serves both embeddings and completions from the Gemini API
// when LLM_PROVIDER=gemini.
// Without an API key the service is built with no client and every call
// fails before reaching the network.
type GeminiService struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	temperature    float32
	maxTokens      int32
	timeout        time.Duration
	embedTimeout   time.Duration
	logger         *zap.Logger
	metrics        *metrics.Metrics

	// embedContent is the embedding call; replaced in tests.
	embedContent func(ctx context.Context, text string) (*genai.EmbedContentResponse, error)
}

var (
	_ Embedder  = (*GeminiService)(nil)
	_ Completer = (*GeminiService)(nil)
)

func NewGeminiService(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*GeminiService, error) {
	s := &GeminiService{
		chatModel:      cfg.GeminiChatModel,
		embeddingModel: cfg.GeminiEmbeddingModel,
		temperature:    float32(cfg.Generation.Temperature),
		maxTokens:      int32(cfg.Generation.MaxTokens),
		timeout:        cfg.Generation.Timeout,
		embedTimeout:   cfg.Embedding.Timeout,
		logger:         logger,
		metrics:        m,
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, retrieval and generation will use fallbacks")
		return s, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	s.client = client
	s.embedContent = func(ctx context.Context, text string) (*genai.EmbedContentResponse, error) {
		return client.EmbeddingModel(s.embeddingModel).EmbedContent(ctx, genai.Text(text))
	}
	return s, nil
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *GeminiService) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.logger.Warn("error closing GenAI client", zap.Error(err))
	} else {
		s.logger.Info("GenAI client closed")
	}
}

func (s *GeminiService) Model() string { return s.chatModel }

func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrEmbeddingUnavailable)
	}
	if s.embedContent == nil {
		return nil, fmt.Errorf("%w: gemini api key not configured", ErrEmbeddingUnavailable)
	}

	ctx, cancel := withTimeout(ctx, s.embedTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.embedContent(ctx, text)
	s.metrics.ObserveBackend(metrics.BackendEmbedding, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embedding request failed: %v", ErrEmbeddingUnavailable, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding data received from gemini", ErrEmbeddingUnavailable)
	}
	return res.Embedding.Values, nil
}

func (s *GeminiService) Complete(ctx context.Context, prompt string) (string, error) {
	if s.client == nil {
		return "", ErrGenerationNotConfigured
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	model := s.client.GenerativeModel(s.chatModel)
	temp := s.temperature
	maxTokens := s.maxTokens
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	s.metrics.ObserveBackend(metrics.BackendGeneration, time.Since(start).Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("%w: gemini GenerateContent failed: %v", ErrBackendUnavailable, err)
	}

	answer := responseText(resp)
	if answer == "" {
		s.logger.Warn("gemini response was empty or had no text parts")
		return "", ErrEmptyCompletion
	}
	return answer, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
