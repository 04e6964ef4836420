package ports

import (
	"context"
	"io"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

// DocumentRepository persists and reads document state. Only the
// orchestrator mutates status and progress during a run.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	UpdateProgress(ctx context.Context, id string, step domain.PipelineStep, percent int) error
}

// ChunkRepository persists chunk rows in bounded batches and purges a
// document's prior chunks before a re-run persists anything.
type ChunkRepository interface {
	InsertBatches(ctx context.Context, chunks []domain.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
	ListByDocument(ctx context.Context, tenantID, documentID string) ([]domain.Chunk, error)
}

// DatasetRepository recomputes per-dataset aggregates from authoritative
// counting queries.
type DatasetRepository interface {
	RecomputeStats(ctx context.Context, tenantID, datasetID string) error
}

// ProcessingLogRepository appends per-step run records.
type ProcessingLogRepository interface {
	Append(ctx context.Context, entry *domain.ProcessingLogEntry) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// CheckpointRepository memoizes completed step results per document.
type CheckpointRepository interface {
	Save(ctx context.Context, documentID string, step domain.PipelineStep, payload []byte) error
	ListByDocument(ctx context.Context, documentID string) (map[domain.PipelineStep][]byte, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ObjectStorage stores source documents scoped by tenant. Open reports a
// missing object as domain.ErrFileNotFound.
type ObjectStorage interface {
	Save(ctx context.Context, tenantID, key string, data io.Reader) error
	Open(ctx context.Context, tenantID, key string) (io.ReadCloser, error)
}

// ContentParser turns raw bytes plus a declared file type into plain text.
type ContentParser interface {
	Parse(ctx context.Context, data []byte, fileType string) (string, error)
}

// Segmenter splits plain text into an ordered, zero-based sequence of
// bounded fragments, each with a provisional quality score in [0,100].
type Segmenter interface {
	Segment(text string, cfg domain.SegmentConfig) []domain.Fragment
}

// ContextEnricher produces a short context prefix per fragment in one
// batch operation. onProgress is invoked periodically, not per chunk.
// Per-fragment failures degrade to an empty prefix; only a wholesale
// failure returns an error.
type ContextEnricher interface {
	EnrichChunks(ctx context.Context, fullText string, fragments []domain.Fragment, onProgress func(done, total int)) ([]domain.ChunkContext, error)
}

// Embedder builds vectors for a batch of texts, preserving order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Notifier informs the review subsystem that chunks await human review.
type Notifier interface {
	NotifyReviewNeeded(ctx context.Context, n domain.ReviewNotification) error
}

// MessageQueue publishes and consumes ingestion triggers.
type MessageQueue interface {
	PublishIngestionTrigger(ctx context.Context, trigger domain.IngestionTrigger) error
	SubscribeIngestionTriggers(ctx context.Context, handler func(context.Context, domain.IngestionTrigger) error) error
}
