package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"medcure.com/assistant/internal/store"
)

type selectiveEmbedder struct {
	failOn string
}

func (e selectiveEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.failOn != "" && len(text) >= len(e.failOn) && text[:len(e.failOn)] == e.failOn {
		return nil, fmt.Errorf("%w: boom", ErrEmbeddingUnavailable)
	}
	return []float32{1, 2, 3}, nil
}

func TestEmbeddingRefresherRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.UpsertDisease(ctx, &store.Disease{ID: 1, Name: "Flu", NameVI: "Cúm", Symptoms: "Fever"}))
	require.NoError(t, st.UpsertMedicine(ctx, &store.Medicine{ID: 2, Name: "Aspirin", Usage: "Oral"}))

	r := NewEmbeddingRefresher(st, selectiveEmbedder{}, 0, zaptest.NewLogger(t))
	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, RefreshReport{Updated: 2}, report)

	embeddings, err := st.ListEmbeddings(ctx, store.ContentTypeAll)
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, "Disease: Flu\nDescription: \nSymptoms: Fever\n\nBệnh: Cúm\nMô tả: \nTriệu chứng: ", embeddings[0].SourceText)
	assert.Equal(t, []float32{1, 2, 3}, embeddings[0].Vector)

	// Nothing is stale after a successful run.
	report, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, RefreshReport{}, report)
}

func TestEmbeddingRefresherSkipsFailures(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.UpsertDisease(ctx, &store.Disease{ID: 1, Name: "Flu"}))
	require.NoError(t, st.UpsertMedicine(ctx, &store.Medicine{ID: 2, Name: "Aspirin"}))

	r := NewEmbeddingRefresher(st, selectiveEmbedder{failOn: "Disease:"}, 0, zaptest.NewLogger(t))
	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, RefreshReport{Updated: 1, Failed: 1}, report)

	stale, err := st.ListStaleDiseases(ctx)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestEmbeddingRefresherStopsOnCancel(t *testing.T) {
	st := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, st.UpsertDisease(ctx, &store.Disease{ID: i, Name: fmt.Sprintf("d%d", i)}))
	}
	cancel()

	r := NewEmbeddingRefresher(st, selectiveEmbedder{}, time.Hour, zaptest.NewLogger(t))
	report, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Updated)
}
