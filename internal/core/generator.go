package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"medcure.com/assistant/internal/config"
	"medcure.com/assistant/internal/metrics"
)

// Completer produces an answer for a fully assembled prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ChatCompletionClient talks to an OpenAI-compatible /chat/completions
// endpoint behind a circuit breaker.
type ChatCompletionClient struct {
	client      *openai.Client
	configured  bool
	model       string
	temperature float32
	maxTokens   int
	breaker     *gobreaker.CircuitBreaker
	metrics     *metrics.Metrics
}

var _ Completer = (*ChatCompletionClient)(nil)

func NewChatCompletionClient(cfg config.GenerationConfig, logger *zap.Logger, m *metrics.Metrics) *ChatCompletionClient {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "generation",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only transport-level failures count against the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrBackendUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &ChatCompletionClient{
		client:      newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		configured:  cfg.APIKey != "" && cfg.BaseURL != "",
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		breaker:     gobreaker.NewCircuitBreaker(settings),
		metrics:     m,
	}
}

func (c *ChatCompletionClient) Model() string { return c.model }

func (c *ChatCompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.configured {
		return "", ErrGenerationNotConfigured
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, prompt)
	})
	c.metrics.ObserveBackend(metrics.BackendGeneration, time.Since(start).Seconds(), err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return "", err
	}
	return out.(string), nil
}

func (c *ChatCompletionClient) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, describeAPIError(err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyCompletion
	}
	return answer, nil
}

// FallbackAnswer is the user-facing reply for a failed generation.
func FallbackAnswer(err error, lang Language) string {
	vi := lang == LanguageVietnamese
	switch {
	case errors.Is(err, ErrGenerationNotConfigured):
		if vi {
			return "Lỗi cấu hình chatbot. Vui lòng liên hệ quản trị viên."
		}
		return "Chatbot configuration error. Please contact the administrator."
	case errors.Is(err, ErrEmptyCompletion):
		if vi {
			return "Xin lỗi, tôi không thể xử lý câu hỏi này. Vui lòng thử lại."
		}
		return "Sorry, I couldn't process this question. Please try again."
	default:
		if vi {
			return "Xin lỗi, đã xảy ra lỗi khi xử lý câu hỏi của bạn. Vui lòng thử lại sau."
		}
		return "Sorry, an error occurred while processing your question. Please try again later."
	}
}

// NoInformationAnswer is the reply when retrieval found nothing relevant.
func NoInformationAnswer(lang Language) string {
	if lang == LanguageVietnamese {
		return "Xin lỗi, tôi không có đủ thông tin để trả lời câu hỏi này. Vui lòng thử với từ khóa khác."
	}
	return "Sorry, I don't have enough information to answer this question. Please try with different keywords."
}
