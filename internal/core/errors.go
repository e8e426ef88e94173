package core

import "errors"

var (
	// ErrEmbeddingUnavailable covers every embedding failure: missing
	// configuration, transport errors, timeouts and malformed responses.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")
	// ErrBackendUnavailable covers generation transport errors, timeouts,
	// non-2xx answers, undecodable bodies and an open circuit breaker.
	ErrBackendUnavailable      = errors.New("generation backend unavailable")
	ErrGenerationNotConfigured = errors.New("generation backend not configured")
	ErrEmptyCompletion         = errors.New("generation backend returned no completion")
	ErrTranslationUnavailable  = errors.New("translation unavailable")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrQuestionRequired     = errors.New("question is required")
	ErrInvalidTitle         = errors.New("title must be 1-255 characters")
)
