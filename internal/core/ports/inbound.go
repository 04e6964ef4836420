package ports

import (
	"context"
	"io"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

// DocumentUploader is the inbound contract for the upload flow: store
// the file, create the document record, publish the ingestion trigger.
type DocumentUploader interface {
	Upload(ctx context.Context, in UploadInput) (*domain.Document, error)
}

type UploadInput struct {
	TenantID  string
	DatasetID *string
	UserID    string
	Filename  string
	FileType  string
	Size      int64
	Body      io.Reader
}

// IngestionRunner is the inbound contract for the asynchronous pipeline.
type IngestionRunner interface {
	Run(ctx context.Context, trigger domain.IngestionTrigger) (*domain.IngestionOutcome, error)
}
