package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"medcure.com/assistant/internal/store"
)

// RefreshStore is what the embedding refresh job reads and writes.
type RefreshStore interface {
	ListStaleDiseases(ctx context.Context) ([]store.Disease, error)
	ListStaleMedicines(ctx context.Context) ([]store.Medicine, error)
	UpsertEmbedding(ctx context.Context, rec store.EmbeddingRecord) error
}

// EmbeddingRefresher re-embeds catalog rows that have no embedding or were
// edited after their embedding was written.
type EmbeddingRefresher struct {
	store    RefreshStore
	embedder Embedder
	delay    time.Duration
	logger   *zap.Logger
}

type RefreshReport struct {
	Updated int
	Failed  int
}

func NewEmbeddingRefresher(st RefreshStore, embedder Embedder, delay time.Duration, logger *zap.Logger) *EmbeddingRefresher {
	return &EmbeddingRefresher{store: st, embedder: embedder, delay: delay, logger: logger}
}

type refreshItem struct {
	contentType store.ContentType
	id          int64
	text        string
	updatedAt   time.Time
}

// Run processes every stale row once. A row whose embedding fails is logged
// and skipped; storage errors and cancellation stop the run.
func (r *EmbeddingRefresher) Run(ctx context.Context) (RefreshReport, error) {
	var report RefreshReport

	diseases, err := r.store.ListStaleDiseases(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list stale diseases: %w", err)
	}
	medicines, err := r.store.ListStaleMedicines(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list stale medicines: %w", err)
	}

	items := make([]refreshItem, 0, len(diseases)+len(medicines))
	for _, d := range diseases {
		items = append(items, refreshItem{store.ContentTypeDisease, d.ID, diseaseSourceText(d), d.UpdatedAt})
	}
	for _, m := range medicines {
		items = append(items, refreshItem{store.ContentTypeMedicine, m.ID, medicineSourceText(m), m.UpdatedAt})
	}
	r.logger.Info("refreshing embeddings", zap.Int("diseases", len(diseases)), zap.Int("medicines", len(medicines)))
	if len(items) == 0 {
		return report, nil
	}

	var tick <-chan time.Time
	if r.delay > 0 {
		ticker := time.NewTicker(r.delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i, item := range items {
		if i > 0 && tick != nil {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-tick:
			}
		}

		vec, err := r.embedder.Embed(ctx, item.text)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			r.logger.Warn("failed to embed catalog row, skipping",
				zap.String("content_type", string(item.contentType)), zap.Int64("content_id", item.id), zap.Error(err))
			continue
		}

		embeddedAt := time.Now().UTC()
		if item.updatedAt.After(embeddedAt) {
			embeddedAt = item.updatedAt
		}
		rec := store.EmbeddingRecord{
			ContentType: item.contentType,
			ContentID:   item.id,
			SourceText:  item.text,
			Vector:      vec,
			UpdatedAt:   embeddedAt,
		}
		if err := r.store.UpsertEmbedding(ctx, rec); err != nil {
			return report, fmt.Errorf("failed to store embedding for %s %d: %w", item.contentType, item.id, err)
		}
		report.Updated++
	}

	r.logger.Info("embedding refresh finished", zap.Int("updated", report.Updated), zap.Int("failed", report.Failed))
	return report, nil
}

func diseaseSourceText(d store.Disease) string {
	return fmt.Sprintf("Disease: %s\nDescription: %s\nSymptoms: %s\n\nBệnh: %s\nMô tả: %s\nTriệu chứng: %s",
		d.Name, d.Description, d.Symptoms, d.NameVI, d.DescriptionVI, d.SymptomsVI)
}

func medicineSourceText(m store.Medicine) string {
	return fmt.Sprintf("Medicine: %s\nDescription: %s\nUsage: %s\nSide Effects: %s\n\nThuốc: %s\nMô tả: %s\nCách dùng: %s\nTác dụng phụ: %s",
		m.Name, m.Description, m.Usage, m.SideEffects, m.NameVI, m.DescriptionVI, m.UsageVI, m.SideEffectsVI)
}
