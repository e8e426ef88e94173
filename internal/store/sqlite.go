package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := sqliteDSN(dataSourceName)

	if err := runSQLiteMigrations(dsn, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// sqliteDSN turns on foreign keys (for the messages cascade) and a busy
// timeout unless the caller already set them.
func sqliteDSN(dataSourceName string) string {
	var params []string
	if !strings.Contains(dataSourceName, "_foreign_keys") && !strings.Contains(dataSourceName, "_fk") {
		params = append(params, "_foreign_keys=on")
	}
	if !strings.Contains(dataSourceName, "_busy_timeout") && !strings.Contains(dataSourceName, "_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dataSourceName
	}
	sep := "?"
	if strings.Contains(dataSourceName, "?") {
		sep = "&"
	}
	return dataSourceName + sep + strings.Join(params, "&")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Conversation methods
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	conv.UpdatedAt = conv.CreatedAt

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, owner_user_id, title, model_used, pinned, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		conv.ID, conv.OwnerUserID, conv.Title, conv.ModelUsed, conv.Pinned, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id, ownerID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = ? AND owner_user_id = ?", id, ownerID)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, ownerID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE owner_user_id = ? ORDER BY pinned DESC, updated_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

func (s *SQLiteStore) UpdateConversationTitle(ctx context.Context, id, ownerID, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND owner_user_id = ?",
		title, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ToggleConversationPin(ctx context.Context, id, ownerID string) (bool, error) {
	var pinned bool
	err := s.db.QueryRowContext(ctx,
		"UPDATE conversations SET pinned = NOT pinned WHERE id = ? AND owner_user_id = ? RETURNING pinned",
		id, ownerID).Scan(&pinned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to toggle conversation pin: %w", err)
	}
	return pinned, nil
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, id, ownerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ? AND owner_user_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	// Covers databases opened without foreign key enforcement.
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation messages: %w", err)
	}
	return tx.Commit()
}

// Message methods
func (s *SQLiteStore) AppendMessage(ctx context.Context, ownerID string, msg *Message) error {
	sources, metadata, err := encodeMessageJSON(msg)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ? AND owner_user_id = ?",
		now, msg.ConversationID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	res, err = tx.ExecContext(ctx,
		"INSERT INTO messages (conversation_id, role, content, sources_json, metadata_json, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ConversationID, msg.Role, msg.Content, sources, metadata, now)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, conversation_id, role, content, sources_json, metadata_json, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC",
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var sources, metadata sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &sources, &metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if err := decodeMessageJSON(&msg, []byte(sources.String), []byte(metadata.String)); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Embedding methods
func (s *SQLiteStore) UpsertEmbedding(ctx context.Context, rec EmbeddingRecord) error {
	vector, err := encodeVector(rec.Vector)
	if err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO embeddings (content_type, content_id, content, vector, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (content_type, content_id) DO UPDATE SET
            content = excluded.content,
            vector = excluded.vector,
            updated_at = excluded.updated_at`,
		rec.ContentType, rec.ContentID, rec.SourceText, vector, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding for %s %d: %w", rec.ContentType, rec.ContentID, err)
	}
	return nil
}

func (s *SQLiteStore) ListEmbeddings(ctx context.Context, filter ContentType) ([]StoredEmbedding, error) {
	if !isValidFilter(filter) {
		return nil, fmt.Errorf("unknown content type filter %q", filter)
	}

	query := embeddingSelect
	var args []any
	if filter != "" && filter != ContentTypeAll {
		query += " WHERE e.content_type = ?"
		args = append(args, filter)
	}
	query += " ORDER BY e.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	embeddings := []StoredEmbedding{}
	for rows.Next() {
		var e StoredEmbedding
		var vectorJSON string
		if err := rows.Scan(&e.ContentType, &e.ContentID, &e.SourceText, &vectorJSON, &e.UpdatedAt, &e.Name, &e.NameVI); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		e.Vector, err = decodeVector(vectorJSON)
		if err != nil {
			s.logger.Warn("failed to unmarshal embedding, vector will be empty",
				zap.String("content_type", string(e.ContentType)), zap.Int64("content_id", e.ContentID), zap.Error(err))
			e.Vector = nil
		}
		embeddings = append(embeddings, e)
	}
	return embeddings, rows.Err()
}

// Catalog methods
func (s *SQLiteStore) GetDisease(ctx context.Context, id int64) (*Disease, error) {
	d, err := scanDisease(s.db.QueryRowContext(ctx, "SELECT "+diseaseColumns+" FROM diseases d WHERE d.id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get disease %d: %w", id, err)
	}
	return d, nil
}

func (s *SQLiteStore) GetMedicine(ctx context.Context, id int64) (*Medicine, error) {
	m, err := scanMedicine(s.db.QueryRowContext(ctx, "SELECT "+medicineColumns+" FROM medicines m WHERE m.id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get medicine %d: %w", id, err)
	}
	return m, nil
}

func (s *SQLiteStore) ListStaleDiseases(ctx context.Context) ([]Disease, error) {
	rows, err := s.db.QueryContext(ctx, staleDiseasesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale diseases: %w", err)
	}
	defer rows.Close()

	var diseases []Disease
	for rows.Next() {
		d, err := scanDisease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan disease row: %w", err)
		}
		diseases = append(diseases, *d)
	}
	return diseases, rows.Err()
}

func (s *SQLiteStore) ListStaleMedicines(ctx context.Context) ([]Medicine, error) {
	rows, err := s.db.QueryContext(ctx, staleMedicinesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale medicines: %w", err)
	}
	defer rows.Close()

	var medicines []Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medicine row: %w", err)
		}
		medicines = append(medicines, *m)
	}
	return medicines, rows.Err()
}

func (s *SQLiteStore) UpsertDisease(ctx context.Context, d *Disease) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO diseases (id, disease_name, disease_name_vi, description, description_vi,
            symptoms, symptoms_vi, causes, causes_vi, prevention, prevention_vi, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            disease_name = excluded.disease_name, disease_name_vi = excluded.disease_name_vi,
            description = excluded.description, description_vi = excluded.description_vi,
            symptoms = excluded.symptoms, symptoms_vi = excluded.symptoms_vi,
            causes = excluded.causes, causes_vi = excluded.causes_vi,
            prevention = excluded.prevention, prevention_vi = excluded.prevention_vi,
            updated_at = excluded.updated_at`,
		d.ID, d.Name, nullIfEmpty(d.NameVI), nullIfEmpty(d.Description), nullIfEmpty(d.DescriptionVI),
		nullIfEmpty(d.Symptoms), nullIfEmpty(d.SymptomsVI), nullIfEmpty(d.Causes), nullIfEmpty(d.CausesVI),
		nullIfEmpty(d.Prevention), nullIfEmpty(d.PreventionVI), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert disease %d: %w", d.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertMedicine(ctx context.Context, m *Medicine) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO medicines (id, medicine_name, medicine_name_vi, description, description_vi,
            usage, usage_vi, side_effects, side_effects_vi, manufacturer, manufacturer_vi, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            medicine_name = excluded.medicine_name, medicine_name_vi = excluded.medicine_name_vi,
            description = excluded.description, description_vi = excluded.description_vi,
            usage = excluded.usage, usage_vi = excluded.usage_vi,
            side_effects = excluded.side_effects, side_effects_vi = excluded.side_effects_vi,
            manufacturer = excluded.manufacturer, manufacturer_vi = excluded.manufacturer_vi,
            updated_at = excluded.updated_at`,
		m.ID, m.Name, nullIfEmpty(m.NameVI), nullIfEmpty(m.Description), nullIfEmpty(m.DescriptionVI),
		nullIfEmpty(m.Usage), nullIfEmpty(m.UsageVI), nullIfEmpty(m.SideEffects), nullIfEmpty(m.SideEffectsVI),
		nullIfEmpty(m.Manufacturer), nullIfEmpty(m.ManufacturerVI), m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert medicine %d: %w", m.ID, err)
	}
	return nil
}
