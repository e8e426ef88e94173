package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if err := runPostgresMigrations(databaseURL, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	conv.UpdatedAt = conv.CreatedAt

	_, err := s.pool.Exec(ctx,
		"INSERT INTO conversations (id, owner_user_id, title, model_used, pinned, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		conv.ID, conv.OwnerUserID, conv.Title, conv.ModelUsed, conv.Pinned, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id, ownerID string) (*Conversation, error) {
	conv, err := scanConversation(s.pool.QueryRow(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = $1 AND owner_user_id = $2", id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, ownerID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE owner_user_id = $1 ORDER BY pinned DESC, updated_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

func (s *PostgresStore) UpdateConversationTitle(ctx context.Context, id, ownerID, title string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE conversations SET title = $1, updated_at = NOW() WHERE id = $2 AND owner_user_id = $3", title, id, ownerID)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ToggleConversationPin(ctx context.Context, id, ownerID string) (bool, error) {
	var pinned bool
	err := s.pool.QueryRow(ctx,
		"UPDATE conversations SET pinned = NOT pinned WHERE id = $1 AND owner_user_id = $2 RETURNING pinned", id, ownerID).Scan(&pinned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle conversation pin: %w", err)
	}
	return pinned, nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, id, ownerID string) error {
	// messages go with the conversation via ON DELETE CASCADE
	tag, err := s.pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1 AND owner_user_id = $2", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, ownerID string, msg *Message) error {
	sources, metadata, err := encodeMessageJSON(msg)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	// Row lock on the conversation serializes concurrent appends.
	tag, err := tx.Exec(ctx,
		"UPDATE conversations SET updated_at = $1 WHERE id = $2 AND owner_user_id = $3", now, msg.ConversationID, ownerID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	var id int64
	err = tx.QueryRow(ctx, `
        INSERT INTO messages (conversation_id, role, content, sources_json, metadata_json, created_at)
        VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6)
        RETURNING id`,
		msg.ConversationID, string(msg.Role), msg.Content, sources, metadata, now).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, conversation_id, role, content, sources_json::text, metadata_json::text, created_at
        FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var role string
		var sources, metadata *string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &sources, &metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = Role(role)
		if err := decodeMessageJSON(&msg, bytesOf(sources), bytesOf(metadata)); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func bytesOf(s *string) []byte {
	if s == nil {
		return nil
	}
	return []byte(*s)
}

func (s *PostgresStore) UpsertEmbedding(ctx context.Context, rec EmbeddingRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO embeddings (content_type, content_id, content, vector, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (content_type, content_id) DO UPDATE SET
            content = EXCLUDED.content,
            vector = EXCLUDED.vector,
            updated_at = EXCLUDED.updated_at`,
		string(rec.ContentType), rec.ContentID, rec.SourceText, rec.Vector, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert embedding for %s %d: %w", rec.ContentType, rec.ContentID, err)
	}
	return nil
}

func (s *PostgresStore) ListEmbeddings(ctx context.Context, filter ContentType) ([]StoredEmbedding, error) {
	if !isValidFilter(filter) {
		return nil, fmt.Errorf("unknown content type filter %q", filter)
	}

	query := embeddingSelect
	var args []any
	if filter != "" && filter != ContentTypeAll {
		query += " WHERE e.content_type = $1"
		args = append(args, string(filter))
	}
	query += " ORDER BY e.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	embeddings := []StoredEmbedding{}
	for rows.Next() {
		var e StoredEmbedding
		var contentType string
		if err := rows.Scan(&contentType, &e.ContentID, &e.SourceText, &e.Vector, &e.UpdatedAt, &e.Name, &e.NameVI); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.ContentType = ContentType(contentType)
		embeddings = append(embeddings, e)
	}
	return embeddings, rows.Err()
}

func (s *PostgresStore) GetDisease(ctx context.Context, id int64) (*Disease, error) {
	d, err := scanDisease(s.pool.QueryRow(ctx, "SELECT "+diseaseColumns+" FROM diseases d WHERE d.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get disease %d: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) GetMedicine(ctx context.Context, id int64) (*Medicine, error) {
	m, err := scanMedicine(s.pool.QueryRow(ctx, "SELECT "+medicineColumns+" FROM medicines m WHERE m.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get medicine %d: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListStaleDiseases(ctx context.Context) ([]Disease, error) {
	rows, err := s.pool.Query(ctx, staleDiseasesQuery)
	if err != nil {
		return nil, fmt.Errorf("list stale diseases: %w", err)
	}
	defer rows.Close()

	var diseases []Disease
	for rows.Next() {
		d, err := scanDisease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan disease: %w", err)
		}
		diseases = append(diseases, *d)
	}
	return diseases, rows.Err()
}

func (s *PostgresStore) ListStaleMedicines(ctx context.Context) ([]Medicine, error) {
	rows, err := s.pool.Query(ctx, staleMedicinesQuery)
	if err != nil {
		return nil, fmt.Errorf("list stale medicines: %w", err)
	}
	defer rows.Close()

	var medicines []Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medicine: %w", err)
		}
		medicines = append(medicines, *m)
	}
	return medicines, rows.Err()
}

func (s *PostgresStore) UpsertDisease(ctx context.Context, d *Disease) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO diseases (id, disease_name, disease_name_vi, description, description_vi,
            symptoms, symptoms_vi, causes, causes_vi, prevention, prevention_vi, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (id) DO UPDATE SET
            disease_name = EXCLUDED.disease_name, disease_name_vi = EXCLUDED.disease_name_vi,
            description = EXCLUDED.description, description_vi = EXCLUDED.description_vi,
            symptoms = EXCLUDED.symptoms, symptoms_vi = EXCLUDED.symptoms_vi,
            causes = EXCLUDED.causes, causes_vi = EXCLUDED.causes_vi,
            prevention = EXCLUDED.prevention, prevention_vi = EXCLUDED.prevention_vi,
            updated_at = EXCLUDED.updated_at`,
		d.ID, d.Name, nullIfEmpty(d.NameVI), nullIfEmpty(d.Description), nullIfEmpty(d.DescriptionVI),
		nullIfEmpty(d.Symptoms), nullIfEmpty(d.SymptomsVI), nullIfEmpty(d.Causes), nullIfEmpty(d.CausesVI),
		nullIfEmpty(d.Prevention), nullIfEmpty(d.PreventionVI), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert disease %d: %w", d.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpsertMedicine(ctx context.Context, m *Medicine) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO medicines (id, medicine_name, medicine_name_vi, description, description_vi,
            usage, usage_vi, side_effects, side_effects_vi, manufacturer, manufacturer_vi, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (id) DO UPDATE SET
            medicine_name = EXCLUDED.medicine_name, medicine_name_vi = EXCLUDED.medicine_name_vi,
            description = EXCLUDED.description, description_vi = EXCLUDED.description_vi,
            usage = EXCLUDED.usage, usage_vi = EXCLUDED.usage_vi,
            side_effects = EXCLUDED.side_effects, side_effects_vi = EXCLUDED.side_effects_vi,
            manufacturer = EXCLUDED.manufacturer, manufacturer_vi = EXCLUDED.manufacturer_vi,
            updated_at = EXCLUDED.updated_at`,
		m.ID, m.Name, nullIfEmpty(m.NameVI), nullIfEmpty(m.Description), nullIfEmpty(m.DescriptionVI),
		nullIfEmpty(m.Usage), nullIfEmpty(m.UsageVI), nullIfEmpty(m.SideEffects), nullIfEmpty(m.SideEffectsVI),
		nullIfEmpty(m.Manufacturer), nullIfEmpty(m.ManufacturerVI), m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert medicine %d: %w", m.ID, err)
	}
	return nil
}
