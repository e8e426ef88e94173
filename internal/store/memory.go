package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store guarded by a single RWMutex. It backs
// DATABASE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]Message
	nextMessageID int64
	embeddings    []EmbeddingRecord
	diseases      map[int64]Disease
	medicines     map[int64]Medicine
	now           func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
		diseases:      make(map[int64]Disease),
		medicines:     make(map[int64]Medicine),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateConversation(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if _, exists := s.conversations[conv.ID]; exists {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = s.now()
	}
	conv.UpdatedAt = conv.CreatedAt
	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

// owned must be called with s.mu held.
func (s *MemoryStore) owned(id, ownerID string) (*Conversation, bool) {
	c, ok := s.conversations[id]
	if !ok || c.OwnerUserID != ownerID {
		return nil, false
	}
	return c, true
}

func (s *MemoryStore) GetConversation(_ context.Context, id, ownerID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.owned(id, ownerID)
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, ownerID string) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Conversation{}
	for _, c := range s.conversations {
		if c.OwnerUserID == ownerID {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateConversationTitle(_ context.Context, id, ownerID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.owned(id, ownerID)
	if !ok {
		return ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) ToggleConversationPin(_ context.Context, id, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.owned(id, ownerID)
	if !ok {
		return false, ErrNotFound
	}
	c.Pinned = !c.Pinned
	return c.Pinned, nil
}

func (s *MemoryStore) DeleteConversation(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owned(id, ownerID); !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, ownerID string, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.owned(msg.ConversationID, ownerID)
	if !ok {
		return ErrNotFound
	}
	s.nextMessageID++
	msg.ID = s.nextMessageID
	msg.CreatedAt = s.now()
	c.UpdatedAt = msg.CreatedAt
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages[conversationID]))
	copy(out, s.messages[conversationID])
	return out, nil
}

func (s *MemoryStore) UpsertEmbedding(_ context.Context, rec EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	for i := range s.embeddings {
		if s.embeddings[i].ContentType == rec.ContentType && s.embeddings[i].ContentID == rec.ContentID {
			s.embeddings[i] = rec
			return nil
		}
	}
	s.embeddings = append(s.embeddings, rec)
	return nil
}

func (s *MemoryStore) ListEmbeddings(_ context.Context, filter ContentType) ([]StoredEmbedding, error) {
	if !isValidFilter(filter) {
		return nil, fmt.Errorf("unknown content type filter %q", filter)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []StoredEmbedding{}
	for _, rec := range s.embeddings {
		if filter != "" && filter != ContentTypeAll && rec.ContentType != filter {
			continue
		}
		e := StoredEmbedding{EmbeddingRecord: rec}
		switch rec.ContentType {
		case ContentTypeDisease:
			d := s.diseases[rec.ContentID]
			e.Name, e.NameVI = d.Name, d.NameVI
		case ContentTypeMedicine:
			m := s.medicines[rec.ContentID]
			e.Name, e.NameVI = m.Name, m.NameVI
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) GetDisease(_ context.Context, id int64) (*Disease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.diseases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) GetMedicine(_ context.Context, id int64) (*Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.medicines[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

// embeddedAt must be called with s.mu held.
func (s *MemoryStore) embeddedAt(t ContentType, id int64) (time.Time, bool) {
	for _, rec := range s.embeddings {
		if rec.ContentType == t && rec.ContentID == id {
			return rec.UpdatedAt, true
		}
	}
	return time.Time{}, false
}

func (s *MemoryStore) ListStaleDiseases(_ context.Context) ([]Disease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Disease
	for id, d := range s.diseases {
		if at, ok := s.embeddedAt(ContentTypeDisease, id); !ok || d.UpdatedAt.After(at) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListStaleMedicines(_ context.Context) ([]Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Medicine
	for id, m := range s.medicines {
		if at, ok := s.embeddedAt(ContentTypeMedicine, id); !ok || m.UpdatedAt.After(at) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertDisease(_ context.Context, d *Disease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = s.now()
	}
	s.diseases[d.ID] = *d
	return nil
}

func (s *MemoryStore) UpsertMedicine(_ context.Context, m *Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now()
	}
	s.medicines[m.ID] = *m
	return nil
}
