package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a row does not exist or is not visible to the
// acting user.
var ErrNotFound = errors.New("not found")

// ConversationStore persists conversations and their messages. Every method
// that touches a conversation is scoped to its owner.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id, ownerID string) (*Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, ownerID, title string) error
	ToggleConversationPin(ctx context.Context, id, ownerID string) (bool, error)
	DeleteConversation(ctx context.Context, id, ownerID string) error
	// AppendMessage verifies ownership, inserts msg and bumps the
	// conversation's updated_at in one transaction. ID and CreatedAt are set
	// on msg.
	AppendMessage(ctx context.Context, ownerID string, msg *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
}

type EmbeddingStore interface {
	UpsertEmbedding(ctx context.Context, rec EmbeddingRecord) error
	// ListEmbeddings returns vectors in storage order. ContentTypeAll or ""
	// disables the filter.
	ListEmbeddings(ctx context.Context, filter ContentType) ([]StoredEmbedding, error)
}

// CatalogStore is read access to the catalog plus the hooks used by the
// embedding refresh job and seeding.
type CatalogStore interface {
	GetDisease(ctx context.Context, id int64) (*Disease, error)
	GetMedicine(ctx context.Context, id int64) (*Medicine, error)
	ListStaleDiseases(ctx context.Context) ([]Disease, error)
	ListStaleMedicines(ctx context.Context) ([]Medicine, error)
	UpsertDisease(ctx context.Context, d *Disease) error
	UpsertMedicine(ctx context.Context, m *Medicine) error
}

type Store interface {
	ConversationStore
	EmbeddingStore
	CatalogStore
	Close() error
}

func isValidFilter(filter ContentType) bool {
	switch filter {
	case "", ContentTypeAll, ContentTypeDisease, ContentTypeMedicine:
		return true
	}
	return false
}

func encodeVector(v []float32) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal embedding: %w", err)
	}
	return string(b), nil
}

func decodeVector(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// encodeNullableJSON returns nil for nil input so the column stays NULL.
func encodeNullableJSON(v any, isNil bool) (*string, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func encodeMessageJSON(msg *Message) (sources, metadata *string, err error) {
	sources, err = encodeNullableJSON(msg.Sources, msg.Sources == nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal sources: %w", err)
	}
	metadata, err = encodeNullableJSON(msg.Metadata, msg.Metadata == nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return sources, metadata, nil
}

func decodeMessageJSON(msg *Message, sources, metadata []byte) error {
	if len(sources) > 0 && string(sources) != "null" {
		if err := json.Unmarshal(sources, &msg.Sources); err != nil {
			return fmt.Errorf("failed to unmarshal sources for message %d: %w", msg.ID, err)
		}
	}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata for message %d: %w", msg.ID, err)
		}
	}
	return nil
}
