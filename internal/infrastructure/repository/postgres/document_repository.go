package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, tenant_id, dataset_id, filename, storage_path, file_type, size_bytes,
	status, progress_step, progress_percent, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		doc.ID, doc.TenantID, doc.DatasetID, doc.Filename, doc.StoragePath, doc.FileType, doc.SizeBytes,
		string(doc.Status), nullableStep(doc.ProgressStep), doc.ProgressPercent, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, dataset_id, filename, storage_path, file_type, size_bytes,
	status, progress_step, progress_percent, error_message, created_at, updated_at
FROM documents
WHERE id = $1 AND tenant_id = $2
`, id, tenantID)

	var doc domain.Document
	var status string
	var step sql.NullString
	var errMessage sql.NullString

	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.DatasetID, &doc.Filename, &doc.StoragePath, &doc.FileType, &doc.SizeBytes,
		&status, &step, &doc.ProgressPercent, &errMessage, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if step.Valid {
		doc.ProgressStep = domain.PipelineStep(step.String)
	}
	if errMessage.Valid {
		doc.Error = errMessage.String
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(res, "update document status", id)
}

func (r *DocumentRepository) UpdateProgress(ctx context.Context, id string, step domain.PipelineStep, percent int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET progress_step = $2, progress_percent = $3, updated_at = $4
WHERE id = $1
`, id, nullableStep(step), percent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document progress: %w", err)
	}
	return requireRow(res, "update document progress", id)
}

func requireRow(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}

func nullableStep(step domain.PipelineStep) any {
	if step == "" {
		return nil
	}
	return string(step)
}
