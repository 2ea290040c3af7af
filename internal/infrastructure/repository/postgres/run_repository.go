package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/antonkh/ragline/internal/core/domain"
)

// RunRepository persists completed pipeline run records for the audit trail.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	sub_queries JSONB NOT NULL DEFAULT '[]'::jsonb,
	total_results INTEGER NOT NULL DEFAULT 0,
	source_count INTEGER NOT NULL DEFAULT 0,
	context_empty BOOLEAN NOT NULL DEFAULT FALSE,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_created_at ON pipeline_runs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) InsertRun(ctx context.Context, record domain.RunRecord) error {
	subQueriesJSON, err := json.Marshal(record.SubQueries)
	if err != nil {
		return fmt.Errorf("marshal sub queries: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO pipeline_runs (
	id, query, sub_queries, total_results, source_count, context_empty, processing_time_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`,
		record.ID, record.Query, subQueriesJSON, record.TotalResults, record.SourceCount,
		record.ContextEmpty, record.ProcessingTimeMs, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

func (r *RunRepository) ListRecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, query, sub_queries, total_results, source_count, context_empty, processing_time_ms, created_at
FROM pipeline_runs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.RunRecord, 0, limit)
	for rows.Next() {
		var record domain.RunRecord
		var subQueriesRaw []byte

		err := rows.Scan(
			&record.ID, &record.Query, &subQueriesRaw, &record.TotalResults, &record.SourceCount,
			&record.ContextEmpty, &record.ProcessingTimeMs, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		if err := json.Unmarshal(subQueriesRaw, &record.SubQueries); err != nil {
			return nil, fmt.Errorf("unmarshal sub queries: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}
	return records, nil
}
