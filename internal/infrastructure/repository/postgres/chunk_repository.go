package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

// defaultChunkBatchSize bounds one INSERT statement; backends cap both
// statement size and parameter count.
const defaultChunkBatchSize = 100

const chunkColumns = `id, tenant_id, document_id, dataset_id, chunk_index, content, embedding,
	quality_score, status, auto_approved, context_prefix, version, active, created_at`

type ChunkRepository struct {
	db        *sql.DB
	batchSize int
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db, batchSize: defaultChunkBatchSize}
}

func NewChunkRepositoryWithBatchSize(db *sql.DB, batchSize int) *ChunkRepository {
	if batchSize <= 0 {
		batchSize = defaultChunkBatchSize
	}
	return &ChunkRepository{db: db, batchSize: batchSize}
}

// InsertBatches persists chunks in bounded batches, each in its own
// transaction. The persisted row count of every batch must equal the
// submitted count; a shortfall means the backend accepted the write but
// dropped rows, which is a correctness bug, not a condition to log away.
func (r *ChunkRepository) InsertBatches(ctx context.Context, chunks []domain.Chunk) error {
	for offset := 0; offset < len(chunks); offset += r.batchSize {
		end := offset + r.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := r.insertBatch(ctx, chunks[offset:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepository) insertBatch(ctx context.Context, batch []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const argsPerRow = 14
	placeholders := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*argsPerRow)
	for i, c := range batch {
		base := i * argsPerRow
		marks := make([]string, argsPerRow)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ",")+")")
		args = append(args,
			c.ID, c.TenantID, c.DocumentID, c.DatasetID, c.Index, c.Content, pgvector.NewVector(c.Embedding),
			c.QualityScore, string(c.Status), c.AutoApproved, nullableText(c.ContextPrefix), c.Version, c.Active, c.CreatedAt,
		)
	}

	query := fmt.Sprintf("INSERT INTO chunks (%s) VALUES %s", chunkColumns, strings.Join(placeholders, ","))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert chunk batch: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("chunk batch rows affected: %w", err)
	}
	if inserted != int64(len(batch)) {
		return domain.WrapError(domain.ErrIntegrity, "insert chunk batch",
			fmt.Errorf("persisted %d of %d submitted rows", inserted, len(batch)))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk batch: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks by document: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete chunks rows affected: %w", err)
	}
	return deleted, nil
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, tenantID, documentID string) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM chunks
WHERE document_id = $1 AND tenant_id = $2 AND active
ORDER BY chunk_index
`, chunkColumns), documentID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var status string
		var prefix sql.NullString
		var embedding pgvector.Vector

		err := rows.Scan(
			&c.ID, &c.TenantID, &c.DocumentID, &c.DatasetID, &c.Index, &c.Content, &embedding,
			&c.QualityScore, &status, &c.AutoApproved, &prefix, &c.Version, &c.Active, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}

		c.Status = domain.ChunkStatus(status)
		c.Embedding = embedding.Slice()
		if prefix.Valid {
			c.ContextPrefix = prefix.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
