package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "medcure.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return newTestSQLiteStore(t)
	})
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medcure.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	conv := &Conversation{OwnerUserID: "alice", Title: "t"}
	require.NoError(t, s.CreateConversation(ctx, conv))
	require.NoError(t, s.Close())

	// Migrations are already applied; reopening must be a no-op for the schema.
	s, err = NewSQLiteStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetConversation(ctx, conv.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
}

func TestSQLiteDeletingCatalogRowDropsEmbedding(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDisease(ctx, &Disease{ID: 1, Name: "Flu"}))
	require.NoError(t, s.UpsertEmbedding(ctx, EmbeddingRecord{ContentType: ContentTypeDisease, ContentID: 1, SourceText: "x", Vector: []float32{1}}))

	_, err := s.db.ExecContext(ctx, "DELETE FROM diseases WHERE id = ?", 1)
	require.NoError(t, err)

	embeddings, err := s.ListEmbeddings(ctx, ContentTypeAll)
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestSQLiteCorruptVectorIsEmptied(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO embeddings (content_type, content_id, content, vector, updated_at) VALUES ('disease', 1, 'x', 'not-json', CURRENT_TIMESTAMP)")
	require.NoError(t, err)

	embeddings, err := s.ListEmbeddings(ctx, ContentTypeAll)
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.Nil(t, embeddings[0].Vector)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on&_busy_timeout=5000", sqliteDSN("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000", sqliteDSN("file:a.db?mode=rwc"))
	assert.Equal(t, "a.db?_fk=1&_timeout=10", sqliteDSN("a.db?_fk=1&_timeout=10"))
}
