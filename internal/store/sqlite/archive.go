package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/taskmaster/internal/history"
)

const saveTimeout = 5 * time.Second

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Archive stores terminal runs.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// Save inserts or replaces run. Non-terminal runs are ignored.
func (a *Archive) Save(ctx context.Context, run history.Run) error {
	if !run.Status.Terminal() {
		return nil
	}

	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("sqlite: marshal result: %w", err)
	}

	completedAt := ""
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(timeLayout)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, job, source, status, started_at, completed_at, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Job, run.Source, string(run.Status),
		run.StartedAt.UTC().Format(timeLayout), completedAt,
		string(resultJSON), run.Error,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save run: %w", err)
	}
	return nil
}

// Hook returns a run hook that archives terminal runs, logging failures.
func (a *Archive) Hook() func(history.Run) {
	return func(run history.Run) {
		if !run.Status.Terminal() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := a.Save(ctx, run); err != nil {
			a.logger.Error("sqlite: archiving run failed", "job", run.Job, "run_id", run.ID, "error", err)
		}
	}
}

// Recent returns up to limit archived runs of job, newest first.
func (a *Archive) Recent(ctx context.Context, job string, limit int) ([]history.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, job, source, status, started_at, completed_at, result, error
		FROM runs
		WHERE job = ?
		ORDER BY started_at DESC
		LIMIT ?`,
		job, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRuns(rows)
}

// Count returns the number of archived runs.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count runs: %w", err)
	}
	return n, nil
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func scanRuns(rows *sql.Rows) ([]history.Run, error) {
	var runs []history.Run
	for rows.Next() {
		var (
			run         history.Run
			status      string
			startedAt   string
			completedAt string
			resultJSON  string
		)
		if err := rows.Scan(&run.ID, &run.Job, &run.Source, &status, &startedAt, &completedAt, &resultJSON, &run.Error); err != nil {
			return nil, fmt.Errorf("sqlite: scan run: %w", err)
		}
		run.Status = history.Status(status)

		t, err := time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse started_at %q: %w", startedAt, err)
		}
		run.StartedAt = t

		if completedAt != "" {
			c, err := time.Parse(timeLayout, completedAt)
			if err != nil {
				return nil, fmt.Errorf("sqlite: parse completed_at %q: %w", completedAt, err)
			}
			run.CompletedAt = &c
		}

		if resultJSON != "" && resultJSON != "{}" && resultJSON != "null" {
			if err := json.Unmarshal([]byte(resultJSON), &run.Result); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal result: %w", err)
			}
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan runs rows: %w", err)
	}
	return runs, nil
}
