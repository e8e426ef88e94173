package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"
	"medcure.com/assistant/internal/config"
	"medcure.com/assistant/internal/metrics"
)

// Translator is used only to augment retrieval queries, so callers must
// tolerate failures.
type Translator interface {
	Translate(ctx context.Context, text string, from, to Language) (string, error)
}

// GoogleTranslator calls Cloud Translation v2 with an API key.
type GoogleTranslator struct {
	svc     *translate.Service
	timeout time.Duration
	metrics *metrics.Metrics
}

var _ Translator = (*GoogleTranslator)(nil)

func NewGoogleTranslator(ctx context.Context, cfg config.TranslateConfig, m *metrics.Metrics) (*GoogleTranslator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: TRANSLATE_API_KEY not set", ErrTranslationUnavailable)
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := translate.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translate client: %w", err)
	}
	return &GoogleTranslator{svc: svc, timeout: cfg.Timeout, metrics: m}, nil
}

func (t *GoogleTranslator) Translate(ctx context.Context, text string, from, to Language) (string, error) {
	if strings.TrimSpace(text) == "" || from == to {
		return text, nil
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := t.svc.Translations.List([]string{text}, string(to)).
		Source(string(from)).
		Format("text").
		Context(ctx).
		Do()
	t.metrics.ObserveBackend(metrics.BackendTranslation, time.Since(start).Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}
	if len(resp.Translations) == 0 || resp.Translations[0].TranslatedText == "" {
		return "", fmt.Errorf("%w: empty translation", ErrTranslationUnavailable)
	}
	return resp.Translations[0].TranslatedText, nil
}
