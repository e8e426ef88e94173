package store

import "time"

type ContentType string

const (
	ContentTypeDisease  ContentType = "disease"
	ContentTypeMedicine ContentType = "medicine"
	// ContentTypeAll is only valid as a listing filter.
	ContentTypeAll ContentType = "all"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Conversation struct {
	ID          string    `json:"id"` // UUID
	OwnerUserID string    `json:"owner_user_id"`
	Title       string    `json:"title"`
	ModelUsed   string    `json:"model_used"`
	Pinned      bool      `json:"pinned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Source is a catalog record cited by an assistant message.
type Source struct {
	ID   int64       `json:"id"`
	Type ContentType `json:"type"`
	Name string      `json:"name"`
}

type Message struct {
	ID             int64          `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	Sources        []Source       `json:"sources"`  // Nullable
	Metadata       map[string]any `json:"metadata"` // Nullable
	CreatedAt      time.Time      `json:"created_at"`
}

type EmbeddingRecord struct {
	ContentType ContentType `json:"content_type"`
	ContentID   int64       `json:"content_id"`
	SourceText  string      `json:"source_text"`
	Vector      []float32   `json:"-"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// StoredEmbedding is an embedding row joined with the display names of its
// catalog entry.
type StoredEmbedding struct {
	EmbeddingRecord
	Name   string `json:"name"`
	NameVI string `json:"name_vi"`
}

// Disease and Medicine mirror the catalog tables. Empty strings stand for
// NULL columns.
type Disease struct {
	ID            int64     `json:"id" yaml:"id"`
	Name          string    `json:"disease_name" yaml:"name"`
	NameVI        string    `json:"disease_name_vi" yaml:"name_vi"`
	Description   string    `json:"description" yaml:"description"`
	DescriptionVI string    `json:"description_vi" yaml:"description_vi"`
	Symptoms      string    `json:"symptoms" yaml:"symptoms"`
	SymptomsVI    string    `json:"symptoms_vi" yaml:"symptoms_vi"`
	Causes        string    `json:"causes" yaml:"causes"`
	CausesVI      string    `json:"causes_vi" yaml:"causes_vi"`
	Prevention    string    `json:"prevention" yaml:"prevention"`
	PreventionVI  string    `json:"prevention_vi" yaml:"prevention_vi"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"`
}

type Medicine struct {
	ID             int64     `json:"id" yaml:"id"`
	Name           string    `json:"medicine_name" yaml:"name"`
	NameVI         string    `json:"medicine_name_vi" yaml:"name_vi"`
	Description    string    `json:"description" yaml:"description"`
	DescriptionVI  string    `json:"description_vi" yaml:"description_vi"`
	Usage          string    `json:"usage" yaml:"usage"`
	UsageVI        string    `json:"usage_vi" yaml:"usage_vi"`
	SideEffects    string    `json:"side_effects" yaml:"side_effects"`
	SideEffectsVI  string    `json:"side_effects_vi" yaml:"side_effects_vi"`
	Manufacturer   string    `json:"manufacturer" yaml:"manufacturer"`
	ManufacturerVI string    `json:"manufacturer_vi" yaml:"manufacturer_vi"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"-"`
}

// CatalogEntry is a tagged variant over the two catalog record shapes.
// Exactly one of Disease or Medicine is set, matching Type.
type CatalogEntry struct {
	Type     ContentType `json:"type"`
	Disease  *Disease    `json:"disease,omitempty"`
	Medicine *Medicine   `json:"medicine,omitempty"`
}
