package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

func TestCheckpointSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewCheckpointRepository(db)

	mock.ExpectExec("INSERT INTO ingestion_checkpoints").
		WithArgs("doc-1", string(domain.StepParsing), []byte(`{"text":"hello"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), "doc-1", domain.StepParsing, []byte(`{"text":"hello"}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCheckpointListReturnsPayloadsByStep(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewCheckpointRepository(db)

	rows := sqlmock.NewRows([]string{"step", "payload"}).
		AddRow(string(domain.StepParsing), []byte(`{"text":"hello"}`)).
		AddRow(string(domain.StepChunking), []byte(`{"fragments":[]}`))
	mock.ExpectQuery("SELECT step, payload FROM ingestion_checkpoints").
		WithArgs("doc-1").
		WillReturnRows(rows)

	got, err := repo.ListByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(got))
	}
	if string(got[domain.StepParsing]) != `{"text":"hello"}` {
		t.Fatalf("unexpected parsing payload %s", got[domain.StepParsing])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
