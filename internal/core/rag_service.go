package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"medcure.com/assistant/internal/config"
	"medcure.com/assistant/internal/metrics"
	"medcure.com/assistant/internal/store"
)

// RetrievalStore is the read side RAGService needs from storage.
type RetrievalStore interface {
	ListEmbeddings(ctx context.Context, filter store.ContentType) ([]store.StoredEmbedding, error)
	GetDisease(ctx context.Context, id int64) (*store.Disease, error)
	GetMedicine(ctx context.Context, id int64) (*store.Medicine, error)
}

// DetailedResult is a ranked hit hydrated with its full catalog record.
// Name and NameVI are the display names joined onto the stored embedding.
type DetailedResult struct {
	Entry      store.CatalogEntry
	Similarity float32
	Name       string
	NameVI     string
}

// Source cites the result by its name in lang, falling back to the other
// language when that name is empty.
func (r DetailedResult) Source(lang Language) store.Source {
	src := store.Source{Type: r.Entry.Type, Name: localized(lang, r.Name, r.NameVI)}
	switch r.Entry.Type {
	case store.ContentTypeDisease:
		src.ID = r.Entry.Disease.ID
	case store.ContentTypeMedicine:
		src.ID = r.Entry.Medicine.ID
	}
	return src
}

type RAGService struct {
	store      RetrievalStore
	embedder   Embedder
	translator Translator // optional
	cfg        config.RetrievalConfig
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewRAGService(st RetrievalStore, embedder Embedder, translator Translator, cfg config.RetrievalConfig, logger *zap.Logger, m *metrics.Metrics) *RAGService {
	return &RAGService{
		store:      st,
		embedder:   embedder,
		translator: translator,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// FindRelevantContent returns the catalog records most similar to question.
// An empty slice is a valid answer. A non-nil error means retrieval could not
// run at all; callers degrade to an empty result.
func (s *RAGService) FindRelevantContent(ctx context.Context, question string, lang Language) ([]DetailedResult, error) {
	query := s.searchQuery(ctx, question, lang)

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}

	candidates, err := s.store.ListEmbeddings(ctx, store.ContentType(s.cfg.ContentType))
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	if len(candidates) == 0 {
		s.logger.Warn("no embeddings stored, run the refresh job")
	}

	ranked, skipped := Rank(queryVec, candidates, s.cfg.TopK, float32(s.cfg.Threshold))
	if skipped > 0 {
		s.logger.Warn("skipped embeddings with missing vector or mismatched dimension",
			zap.Int("skipped", skipped), zap.Int("query_dimension", len(queryVec)))
	}

	results := make([]DetailedResult, 0, len(ranked))
	for _, r := range ranked {
		entry, err := s.hydrate(ctx, r.ContentType, r.ContentID)
		if err != nil {
			s.logger.Warn("failed to load catalog record, skipping",
				zap.String("content_type", string(r.ContentType)), zap.Int64("content_id", r.ContentID), zap.Error(err))
			continue
		}
		results = append(results, DetailedResult{Entry: entry, Similarity: r.Similarity, Name: r.Name, NameVI: r.NameVI})
	}

	s.metrics.ObserveRetrieval(len(results))
	s.logger.Debug("retrieval finished",
		zap.Int("candidates", len(candidates)), zap.Int("results", len(results)), zap.Float64("threshold", s.cfg.Threshold))
	return results, nil
}

// searchQuery prefixes Vietnamese questions with their English translation.
// Translation is best effort.
func (s *RAGService) searchQuery(ctx context.Context, question string, lang Language) string {
	if lang != LanguageVietnamese || s.translator == nil {
		return question
	}
	english, err := s.translator.Translate(ctx, question, LanguageVietnamese, LanguageEnglish)
	if err != nil {
		s.logger.Warn("translation failed, searching with the original question", zap.Error(err))
		return question
	}
	english = strings.TrimSpace(english)
	if english == "" {
		return question
	}
	return english + " " + question
}

func (s *RAGService) hydrate(ctx context.Context, contentType store.ContentType, id int64) (store.CatalogEntry, error) {
	switch contentType {
	case store.ContentTypeDisease:
		d, err := s.store.GetDisease(ctx, id)
		if err != nil {
			return store.CatalogEntry{}, err
		}
		return store.CatalogEntry{Type: contentType, Disease: d}, nil
	case store.ContentTypeMedicine:
		m, err := s.store.GetMedicine(ctx, id)
		if err != nil {
			return store.CatalogEntry{}, err
		}
		return store.CatalogEntry{Type: contentType, Medicine: m}, nil
	}
	return store.CatalogEntry{}, errors.New("unknown content type " + string(contentType))
}
