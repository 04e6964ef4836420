package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
	"github.com/ragline/knowledge-ingest/internal/core/ports"
)

// UploadDocumentUseCase runs the synchronous half of ingestion: store
// the source file, create the document record, publish the trigger that
// starts the asynchronous pipeline.
type UploadDocumentUseCase struct {
	docs    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewUploadDocumentUseCase(
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *UploadDocumentUseCase {
	return &UploadDocumentUseCase{
		docs:    docs,
		storage: storage,
		queue:   queue,
	}
}

func (uc *UploadDocumentUseCase) Upload(ctx context.Context, in ports.UploadInput) (*domain.Document, error) {
	if strings.TrimSpace(in.TenantID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("tenant id is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(in.Filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, in.TenantID, storageKey, in.Body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		TenantID:    in.TenantID,
		DatasetID:   in.DatasetID,
		Filename:    in.Filename,
		StoragePath: storageKey,
		FileType:    resolveFileType(in.FileType, in.Filename),
		SizeBytes:   in.Size,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	trigger := domain.IngestionTrigger{
		DocumentID: doc.ID,
		TenantID:   doc.TenantID,
		DatasetID:  doc.DatasetID,
		UserID:     in.UserID,
		Filename:   doc.Filename,
		FileType:   doc.FileType,
		FilePath:   doc.StoragePath,
	}
	if err := uc.queue.PublishIngestionTrigger(ctx, trigger); err != nil {
		return nil, fmt.Errorf("publish ingestion trigger: %w", err)
	}

	return doc, nil
}

func resolveFileType(declared, filename string) string {
	if strings.TrimSpace(declared) != "" {
		return declared
	}
	return strings.TrimPrefix(filepath.Ext(filename), ".")
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
