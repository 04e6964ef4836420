package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type DatasetRepository struct {
	db *sql.DB
}

func NewDatasetRepository(db *sql.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// RecomputeStats rewrites the dataset's counters from authoritative
// counting queries. Concurrent ingestions into the same dataset each
// recompute on completion, so the aggregate converges without a lock
// instead of drifting the way incremental arithmetic would.
func (r *DatasetRepository) RecomputeStats(ctx context.Context, tenantID, datasetID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE datasets
SET document_count = (
		SELECT COUNT(*) FROM documents
		WHERE dataset_id = $1 AND tenant_id = $2
	),
	chunk_count = (
		SELECT COUNT(*) FROM chunks
		WHERE dataset_id = $1 AND tenant_id = $2 AND active
	),
	storage_bytes = COALESCE((
		SELECT SUM(size_bytes) FROM documents
		WHERE dataset_id = $1 AND tenant_id = $2
	), 0),
	updated_at = $3
WHERE id = $1 AND tenant_id = $2
`, datasetID, tenantID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recompute dataset stats: %w", err)
	}
	return nil
}
