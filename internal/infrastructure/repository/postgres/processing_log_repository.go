package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

type ProcessingLogRepository struct {
	db *sql.DB
}

func NewProcessingLogRepository(db *sql.DB) *ProcessingLogRepository {
	return &ProcessingLogRepository{db: db}
}

func (r *ProcessingLogRepository) Append(ctx context.Context, entry *domain.ProcessingLogEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal log details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO processing_logs (
	id, tenant_id, document_id, step, status, message, details, duration_ms, error_message, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		entry.ID, entry.TenantID, entry.DocumentID, string(entry.Step), string(entry.Status),
		entry.Message, detailsJSON, entry.Duration.Milliseconds(), entry.ErrorMessage, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert processing log: %w", err)
	}
	return nil
}

func (r *ProcessingLogRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM processing_logs WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete processing logs: %w", err)
	}
	return nil
}
