package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the behaviour every Store implementation must share.
// newStore must return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("ConversationLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv := &Conversation{OwnerUserID: "alice", Title: "Headache", ModelUsed: "deepseek-chat"}
		require.NoError(t, s.CreateConversation(ctx, conv))
		require.NotEmpty(t, conv.ID)

		got, err := s.GetConversation(ctx, conv.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Headache", got.Title)
		assert.Equal(t, "deepseek-chat", got.ModelUsed)
		assert.False(t, got.Pinned)

		_, err = s.GetConversation(ctx, conv.ID, "bob")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.UpdateConversationTitle(ctx, conv.ID, "alice", "Migraine"))
		assert.ErrorIs(t, s.UpdateConversationTitle(ctx, conv.ID, "bob", "stolen"), ErrNotFound)

		pinned, err := s.ToggleConversationPin(ctx, conv.ID, "alice")
		require.NoError(t, err)
		assert.True(t, pinned)
		pinned, err = s.ToggleConversationPin(ctx, conv.ID, "alice")
		require.NoError(t, err)
		assert.False(t, pinned)
		_, err = s.ToggleConversationPin(ctx, conv.ID, "bob")
		assert.ErrorIs(t, err, ErrNotFound)

		got, err = s.GetConversation(ctx, conv.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Migraine", got.Title)
	})

	t.Run("ListConversationsPinnedFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		older := &Conversation{OwnerUserID: "alice", Title: "older"}
		require.NoError(t, s.CreateConversation(ctx, older))
		time.Sleep(5 * time.Millisecond)
		newer := &Conversation{OwnerUserID: "alice", Title: "newer"}
		require.NoError(t, s.CreateConversation(ctx, newer))
		require.NoError(t, s.CreateConversation(ctx, &Conversation{OwnerUserID: "bob", Title: "other"}))

		list, err := s.ListConversations(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "newer", list[0].Title)

		_, err = s.ToggleConversationPin(ctx, older.ID, "alice")
		require.NoError(t, err)
		list, err = s.ListConversations(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "older", list[0].Title)
	})

	t.Run("AppendMessage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv := &Conversation{OwnerUserID: "alice", Title: "t"}
		require.NoError(t, s.CreateConversation(ctx, conv))

		userMsg := &Message{ConversationID: conv.ID, Role: RoleUser, Content: "What causes a headache?"}
		require.NoError(t, s.AppendMessage(ctx, "alice", userMsg))
		assert.NotZero(t, userMsg.ID)
		assert.False(t, userMsg.CreatedAt.IsZero())

		reply := &Message{
			ConversationID: conv.ID,
			Role:           RoleAssistant,
			Content:        "Stress and dehydration.",
			Sources:        []Source{{ID: 7, Type: ContentTypeDisease, Name: "Migraine"}},
			Metadata:       map[string]any{"model": "deepseek-chat", "language": "en"},
		}
		require.NoError(t, s.AppendMessage(ctx, "alice", reply))
		assert.Greater(t, reply.ID, userMsg.ID)

		messages, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, RoleUser, messages[0].Role)
		assert.Nil(t, messages[0].Sources)
		assert.Nil(t, messages[0].Metadata)
		assert.Equal(t, RoleAssistant, messages[1].Role)
		assert.Equal(t, reply.Sources, messages[1].Sources)
		assert.Equal(t, "deepseek-chat", messages[1].Metadata["model"])

		got, err := s.GetConversation(ctx, conv.ID, "alice")
		require.NoError(t, err)
		assert.False(t, got.UpdatedAt.Before(messages[1].CreatedAt), "updated_at must not precede the newest message")
	})

	t.Run("AppendMessageRejectsForeignOwner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv := &Conversation{OwnerUserID: "alice", Title: "t"}
		require.NoError(t, s.CreateConversation(ctx, conv))

		err := s.AppendMessage(ctx, "mallory", &Message{ConversationID: conv.ID, Role: RoleUser, Content: "hi"})
		assert.ErrorIs(t, err, ErrNotFound)
		err = s.AppendMessage(ctx, "alice", &Message{ConversationID: "missing", Role: RoleUser, Content: "hi"})
		assert.ErrorIs(t, err, ErrNotFound)

		messages, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("DeleteConversationCascades", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv := &Conversation{OwnerUserID: "alice", Title: "t"}
		require.NoError(t, s.CreateConversation(ctx, conv))
		require.NoError(t, s.AppendMessage(ctx, "alice", &Message{ConversationID: conv.ID, Role: RoleUser, Content: "hi"}))

		assert.ErrorIs(t, s.DeleteConversation(ctx, conv.ID, "bob"), ErrNotFound)
		require.NoError(t, s.DeleteConversation(ctx, conv.ID, "alice"))

		_, err := s.GetConversation(ctx, conv.ID, "alice")
		assert.ErrorIs(t, err, ErrNotFound)
		messages, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("Embeddings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertDisease(ctx, &Disease{ID: 1, Name: "Migraine", NameVI: "Đau nửa đầu"}))
		require.NoError(t, s.UpsertMedicine(ctx, &Medicine{ID: 2, Name: "Paracetamol"}))

		require.NoError(t, s.UpsertEmbedding(ctx, EmbeddingRecord{ContentType: ContentTypeDisease, ContentID: 1, SourceText: "v1", Vector: []float32{1, 0}}))
		require.NoError(t, s.UpsertEmbedding(ctx, EmbeddingRecord{ContentType: ContentTypeMedicine, ContentID: 2, SourceText: "m", Vector: []float32{0, 1}}))
		require.NoError(t, s.UpsertEmbedding(ctx, EmbeddingRecord{ContentType: ContentTypeDisease, ContentID: 1, SourceText: "v2", Vector: []float32{0.5, 0.5}}))

		all, err := s.ListEmbeddings(ctx, ContentTypeAll)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, ContentTypeDisease, all[0].ContentType)
		assert.Equal(t, "v2", all[0].SourceText)
		assert.Equal(t, []float32{0.5, 0.5}, all[0].Vector)
		assert.Equal(t, "Migraine", all[0].Name)
		assert.Equal(t, "Đau nửa đầu", all[0].NameVI)
		assert.Equal(t, "Paracetamol", all[1].Name)
		assert.Empty(t, all[1].NameVI)

		medicines, err := s.ListEmbeddings(ctx, ContentTypeMedicine)
		require.NoError(t, err)
		require.Len(t, medicines, 1)
		assert.Equal(t, int64(2), medicines[0].ContentID)

		_, err = s.ListEmbeddings(ctx, ContentType("herb"))
		assert.Error(t, err)
	})

	t.Run("StaleCatalogEntries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Second)
		d := &Disease{ID: 1, Name: "Flu", UpdatedAt: base}
		require.NoError(t, s.UpsertDisease(ctx, d))
		require.NoError(t, s.UpsertMedicine(ctx, &Medicine{ID: 3, Name: "Aspirin", UpdatedAt: base}))

		stale, err := s.ListStaleDiseases(ctx)
		require.NoError(t, err)
		require.Len(t, stale, 1)

		require.NoError(t, s.UpsertEmbedding(ctx, EmbeddingRecord{ContentType: ContentTypeDisease, ContentID: 1, SourceText: "x", Vector: []float32{1}, UpdatedAt: base.Add(time.Second)}))
		stale, err = s.ListStaleDiseases(ctx)
		require.NoError(t, err)
		assert.Empty(t, stale)

		d.UpdatedAt = base.Add(2 * time.Second)
		require.NoError(t, s.UpsertDisease(ctx, d))
		stale, err = s.ListStaleDiseases(ctx)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "Flu", stale[0].Name)

		medicines, err := s.ListStaleMedicines(ctx)
		require.NoError(t, err)
		require.Len(t, medicines, 1)
		assert.Equal(t, "Aspirin", medicines[0].Name)
	})

	t.Run("CatalogLookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertMedicine(ctx, &Medicine{ID: 5, Name: "Ibuprofen", UsageVI: "Uống sau ăn", Manufacturer: "Acme"}))
		m, err := s.GetMedicine(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, "Ibuprofen", m.Name)
		assert.Equal(t, "Uống sau ăn", m.UsageVI)
		assert.Empty(t, m.Usage)
		assert.Equal(t, "Acme", m.Manufacturer)

		_, err = s.GetMedicine(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetDisease(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}
