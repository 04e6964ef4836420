package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

func newLogRepoWithMock(t *testing.T) (*ProcessingLogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ProcessingLogRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestAppendSerializesDetailsAndDuration(t *testing.T) {
	repo, mock, done := newLogRepoWithMock(t)
	defer done()

	created := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO processing_logs").
		WithArgs(
			"log-1", "tenant-1", "doc-1", "chunking", "completed",
			"text segmented", []byte(`{"fragment_count":7}`), int64(1500), "", created,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), &domain.ProcessingLogEntry{
		ID:         "log-1",
		TenantID:   "tenant-1",
		DocumentID: "doc-1",
		Step:       domain.StepChunking,
		Status:     domain.StepCompleted,
		Message:    "text segmented",
		Details:    map[string]any{"fragment_count": 7},
		Duration:   1500 * time.Millisecond,
		CreatedAt:  created,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendDefaultsNilDetailsToEmptyObject(t *testing.T) {
	repo, mock, done := newLogRepoWithMock(t)
	defer done()

	created := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO processing_logs").
		WithArgs(
			"log-2", "tenant-1", "doc-1", "parsing", "failed",
			"", []byte(`{}`), int64(0), "open failed", created,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), &domain.ProcessingLogEntry{
		ID:           "log-2",
		TenantID:     "tenant-1",
		DocumentID:   "doc-1",
		Step:         domain.StepParsing,
		Status:       domain.StepFailed,
		ErrorMessage: "open failed",
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteByDocumentClearsHistory(t *testing.T) {
	repo, mock, done := newLogRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM processing_logs WHERE document_id").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 5))

	if err := repo.DeleteByDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
