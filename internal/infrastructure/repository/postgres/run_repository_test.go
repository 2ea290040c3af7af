package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/antonkh/ragline/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*RunRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &RunRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestInsertRunMarshalsSubQueries(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	createdAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO pipeline_runs").
		WithArgs("run-1", "how do sharks sleep", []byte(`["shark sleep cycles","shark rest behavior"]`),
			7, 3, false, int64(412), createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertRun(context.Background(), domain.RunRecord{
		ID:               "run-1",
		Query:            "how do sharks sleep",
		SubQueries:       []string{"shark sleep cycles", "shark rest behavior"},
		TotalResults:     7,
		SourceCount:      3,
		ContextEmpty:     false,
		ProcessingTimeMs: 412,
		CreatedAt:        createdAt,
	})
	if err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentRunsScansRecords(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	createdAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "query", "sub_queries", "total_results", "source_count",
		"context_empty", "processing_time_ms", "created_at",
	}).AddRow("run-2", "tide patterns", []byte(`["tide patterns"]`), 0, 0, true, int64(88), createdAt)

	mock.ExpectQuery("SELECT id, query, sub_queries").
		WithArgs(5).
		WillReturnRows(rows)

	records, err := repo.ListRecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListRecentRuns() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != "run-2" || !got.ContextEmpty || got.ProcessingTimeMs != 88 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.SubQueries) != 1 || got.SubQueries[0] != "tide patterns" {
		t.Fatalf("unexpected sub queries: %v", got.SubQueries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentRunsAppliesDefaultLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, query, sub_queries").
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "query", "sub_queries", "total_results", "source_count",
			"context_empty", "processing_time_ms", "created_at",
		}))

	records, err := repo.ListRecentRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRecentRuns() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
