package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

// CheckpointRepository memoizes completed step results. A re-entered job
// reads them at start and resumes at the first step without a row.
type CheckpointRepository struct {
	db *sql.DB
}

func NewCheckpointRepository(db *sql.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

func (r *CheckpointRepository) Save(ctx context.Context, documentID string, step domain.PipelineStep, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingestion_checkpoints (document_id, step, payload, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (document_id, step) DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at
`, documentID, string(step), payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (r *CheckpointRepository) ListByDocument(ctx context.Context, documentID string) (map[domain.PipelineStep][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT step, payload FROM ingestion_checkpoints WHERE document_id = $1
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.PipelineStep][]byte)
	for rows.Next() {
		var step string
		var payload []byte
		if err := rows.Scan(&step, &payload); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out[domain.PipelineStep(step)] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return out, nil
}

func (r *CheckpointRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ingestion_checkpoints WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}
