package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo

	"github.com/mattdef/miniclaw-sub000/internal/errs"
)

// SQLiteExecutionStore is a durable ExecutionStore backed by
// modernc.org/sqlite, so job history survives a daemon restart the same
// way the job map itself does. The jobs.json file remains the source of
// truth for which jobs are *scheduled*; this store only ever accumulates
// history rows.
type SQLiteExecutionStore struct {
	db *sql.DB
}

// NewSQLiteExecutionStore opens (creating if absent) a sqlite database at
// path and ensures the executions table exists.
func NewSQLiteExecutionStore(path string) (*SQLiteExecutionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.IO(path, err)
	}
	store := &SQLiteExecutionStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteExecutionStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS job_executions (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			duration_ms INTEGER,
			output TEXT,
			error TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create job_executions table: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_job_executions_job_id ON job_executions(job_id)`)
	if err != nil {
		return fmt.Errorf("create job_executions index: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteExecutionStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteExecutionStore) Create(ctx context.Context, exec *JobExecution) error {
	if exec == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_executions (id, job_id, status, started_at, completed_at, duration_ms, output, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, completed_at=excluded.completed_at,
			duration_ms=excluded.duration_ms, output=excluded.output, error=excluded.error
	`, exec.ID, exec.JobID, string(exec.Status), exec.StartedAt, nullTime(exec.CompletedAt), exec.Duration.Milliseconds(), exec.Output, exec.Error)
	if err != nil {
		return fmt.Errorf("insert job execution: %w", err)
	}
	return nil
}

func (s *SQLiteExecutionStore) Update(ctx context.Context, exec *JobExecution) error {
	return s.Create(ctx, exec)
}

func (s *SQLiteExecutionStore) List(ctx context.Context, jobID string, limit int) ([]*JobExecution, error) {
	query := `SELECT id, job_id, status, started_at, completed_at, duration_ms, output, error FROM job_executions`
	args := []any{}
	if jobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job executions: %w", err)
	}
	defer rows.Close()

	var out []*JobExecution
	for rows.Next() {
		var exec JobExecution
		var status string
		var completedAt sql.NullTime
		var durationMs int64
		if err := rows.Scan(&exec.ID, &exec.JobID, &status, &exec.StartedAt, &completedAt, &durationMs, &exec.Output, &exec.Error); err != nil {
			return nil, fmt.Errorf("scan job execution: %w", err)
		}
		exec.Status = ExecutionStatus(status)
		if completedAt.Valid {
			exec.CompletedAt = completedAt.Time
		}
		exec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, &exec)
	}
	return out, rows.Err()
}

func (s *SQLiteExecutionStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, `DELETE FROM job_executions WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune job executions: %w", err)
	}
	return result.RowsAffected()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
