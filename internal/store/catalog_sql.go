package store

// Column lists and scanners shared by the SQLite and Postgres stores. Both
// *sql.Row(s) and pgx.Row(s) satisfy rowScanner.

type rowScanner interface {
	Scan(dest ...any) error
}

const conversationColumns = `id, owner_user_id, title, model_used, pinned, created_at, updated_at`

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	if err := row.Scan(&c.ID, &c.OwnerUserID, &c.Title, &c.ModelUsed, &c.Pinned, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

const diseaseColumns = `d.id, d.disease_name, COALESCE(d.disease_name_vi, ''),
	COALESCE(d.description, ''), COALESCE(d.description_vi, ''),
	COALESCE(d.symptoms, ''), COALESCE(d.symptoms_vi, ''),
	COALESCE(d.causes, ''), COALESCE(d.causes_vi, ''),
	COALESCE(d.prevention, ''), COALESCE(d.prevention_vi, ''),
	d.updated_at`

func scanDisease(row rowScanner) (*Disease, error) {
	var d Disease
	err := row.Scan(&d.ID, &d.Name, &d.NameVI,
		&d.Description, &d.DescriptionVI,
		&d.Symptoms, &d.SymptomsVI,
		&d.Causes, &d.CausesVI,
		&d.Prevention, &d.PreventionVI,
		&d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const medicineColumns = `m.id, m.medicine_name, COALESCE(m.medicine_name_vi, ''),
	COALESCE(m.description, ''), COALESCE(m.description_vi, ''),
	COALESCE(m.usage, ''), COALESCE(m.usage_vi, ''),
	COALESCE(m.side_effects, ''), COALESCE(m.side_effects_vi, ''),
	COALESCE(m.manufacturer, ''), COALESCE(m.manufacturer_vi, ''),
	m.updated_at`

func scanMedicine(row rowScanner) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.NameVI,
		&m.Description, &m.DescriptionVI,
		&m.Usage, &m.UsageVI,
		&m.SideEffects, &m.SideEffectsVI,
		&m.Manufacturer, &m.ManufacturerVI,
		&m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// embeddingSelect joins each vector with the display names of its catalog
// entry. The caller appends the filter and ordering.
const embeddingSelect = `
    SELECT e.content_type, e.content_id, e.content, e.vector, e.updated_at,
           COALESCE(CASE
               WHEN e.content_type = 'disease' THEN d.disease_name
               WHEN e.content_type = 'medicine' THEN m.medicine_name
           END, ''),
           COALESCE(CASE
               WHEN e.content_type = 'disease' THEN d.disease_name_vi
               WHEN e.content_type = 'medicine' THEN m.medicine_name_vi
           END, '')
    FROM embeddings e
    LEFT JOIN diseases d ON e.content_type = 'disease' AND e.content_id = d.id
    LEFT JOIN medicines m ON e.content_type = 'medicine' AND e.content_id = m.id`

const staleDiseasesQuery = `
    SELECT ` + diseaseColumns + `
    FROM diseases d
    LEFT JOIN embeddings e ON e.content_type = 'disease' AND e.content_id = d.id
    WHERE e.id IS NULL OR d.updated_at > e.updated_at
    ORDER BY d.id`

const staleMedicinesQuery = `
    SELECT ` + medicineColumns + `
    FROM medicines m
    LEFT JOIN embeddings e ON e.content_type = 'medicine' AND e.content_id = m.id
    WHERE e.id IS NULL OR m.updated_at > e.updated_at
    ORDER BY m.id`

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
