package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newDatasetRepoWithMock(t *testing.T) (*DatasetRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DatasetRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestRecomputeStatsRewritesAggregatesInOneStatement(t *testing.T) {
	repo, mock, done := newDatasetRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE datasets").
		WithArgs("ds-1", "tenant-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecomputeStats(context.Background(), "tenant-1", "ds-1"); err != nil {
		t.Fatalf("RecomputeStats: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecomputeStatsPropagatesExecError(t *testing.T) {
	repo, mock, done := newDatasetRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE datasets").
		WithArgs("ds-1", "tenant-1", sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	if err := repo.RecomputeStats(context.Background(), "tenant-1", "ds-1"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
