package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"medcure.com/assistant/internal/config"
	"medcure.com/assistant/internal/store"
)

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertDisease(ctx, &store.Disease{ID: 1, Name: "Migraine", NameVI: "Đau nửa đầu"}))
	require.NoError(t, s.UpsertDisease(ctx, &store.Disease{ID: 2, Name: "Flu", NameVI: "Cúm"}))
	require.NoError(t, s.UpsertMedicine(ctx, &store.Medicine{ID: 3, Name: "Paracetamol"}))

	require.NoError(t, s.UpsertEmbedding(ctx, store.EmbeddingRecord{ContentType: store.ContentTypeDisease, ContentID: 1, SourceText: "migraine", Vector: []float32{1, 0, 0}}))
	require.NoError(t, s.UpsertEmbedding(ctx, store.EmbeddingRecord{ContentType: store.ContentTypeDisease, ContentID: 2, SourceText: "flu", Vector: []float32{0, 1, 0}}))
	require.NoError(t, s.UpsertEmbedding(ctx, store.EmbeddingRecord{ContentType: store.ContentTypeMedicine, ContentID: 3, SourceText: "paracetamol", Vector: []float32{0.9, 0.1, 0}}))
	// Orphan: no catalog row behind it.
	require.NoError(t, s.UpsertEmbedding(ctx, store.EmbeddingRecord{ContentType: store.ContentTypeMedicine, ContentID: 99, SourceText: "gone", Vector: []float32{1, 0, 0}}))
	return s
}

func retrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{Threshold: 0.6, TopK: 5, ContentType: "all"}
}

func TestFindRelevantContent(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	rag := NewRAGService(seededStore(t), emb, nil, retrievalConfig(), zaptest.NewLogger(t), nil)

	results, err := rag.FindRelevantContent(context.Background(), "What causes migraine?", LanguageEnglish)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, store.Source{ID: 1, Type: store.ContentTypeDisease, Name: "Migraine"}, results[0].Source(LanguageEnglish))
	assert.Equal(t, store.Source{ID: 3, Type: store.ContentTypeMedicine, Name: "Paracetamol"}, results[1].Source(LanguageEnglish))
	assert.Equal(t, []string{"What causes migraine?"}, emb.inputs)
}

func TestDetailedResultSourceIsLocalized(t *testing.T) {
	rag := NewRAGService(seededStore(t), &fakeEmbedder{vector: []float32{1, 0, 0}}, nil, retrievalConfig(), zaptest.NewLogger(t), nil)

	results, err := rag.FindRelevantContent(context.Background(), "đau đầu", LanguageVietnamese)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, store.Source{ID: 1, Type: store.ContentTypeDisease, Name: "Đau nửa đầu"}, results[0].Source(LanguageVietnamese))
	assert.Equal(t, store.Source{ID: 1, Type: store.ContentTypeDisease, Name: "Migraine"}, results[0].Source(LanguageEnglish))
	// No Vietnamese name stored: falls back to English.
	assert.Equal(t, "Paracetamol", results[1].Source(LanguageVietnamese).Name)
}

func TestFindRelevantContentFilter(t *testing.T) {
	cfg := retrievalConfig()
	cfg.ContentType = "medicine"
	rag := NewRAGService(seededStore(t), &fakeEmbedder{vector: []float32{1, 0, 0}}, nil, cfg, zaptest.NewLogger(t), nil)

	results, err := rag.FindRelevantContent(context.Background(), "pain relief", LanguageEnglish)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, store.ContentTypeMedicine, results[0].Entry.Type)
}

func TestFindRelevantContentTranslatesVietnamese(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0, 1, 0}}
	tr := &fakeTranslator{out: "What is the flu?"}
	rag := NewRAGService(seededStore(t), emb, tr, retrievalConfig(), zaptest.NewLogger(t), nil)

	results, err := rag.FindRelevantContent(context.Background(), "Cúm là gì?", LanguageVietnamese)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Flu", results[0].Entry.Disease.Name)
	assert.Equal(t, []string{"What is the flu? Cúm là gì?"}, emb.inputs)
}

func TestFindRelevantContentTranslationFailureUsesOriginal(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0, 1, 0}}
	tr := &fakeTranslator{err: fmt.Errorf("%w: quota", ErrTranslationUnavailable)}
	rag := NewRAGService(seededStore(t), emb, tr, retrievalConfig(), zaptest.NewLogger(t), nil)

	_, err := rag.FindRelevantContent(context.Background(), "Cúm là gì?", LanguageVietnamese)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cúm là gì?"}, emb.inputs)
}

func TestFindRelevantContentEmbeddingFailure(t *testing.T) {
	emb := &fakeEmbedder{err: fmt.Errorf("%w: timeout", ErrEmbeddingUnavailable)}
	rag := NewRAGService(seededStore(t), emb, nil, retrievalConfig(), zaptest.NewLogger(t), nil)

	results, err := rag.FindRelevantContent(context.Background(), "anything", LanguageEnglish)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Empty(t, results)
}

func TestFindRelevantContentNothingAboveThreshold(t *testing.T) {
	rag := NewRAGService(seededStore(t), &fakeEmbedder{vector: []float32{0, 0, 1}}, nil, retrievalConfig(), zaptest.NewLogger(t), nil)

	results, err := rag.FindRelevantContent(context.Background(), "unrelated", LanguageEnglish)
	require.NoError(t, err)
	assert.Empty(t, results)
}
