package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/acsweep/internal/types"
)

// SQLiteStorage archives runs in a SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

// New opens (creating if needed) the archive at path.
// The special path ":memory:" opens a private in-memory database.
func New(path string) (*SQLiteStorage, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		// Escaped so that '?', '#' and '%' in the file name stay part of the path
		dsn = (&url.URL{
			Scheme:   "file",
			OmitHost: true,
			Path:     path,
			RawQuery: "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		}).String()
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateRun stores a new run record
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *types.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, base_url, alphabet, workers, status, discovered, requests,
			attempts, failed, output, persist_error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.BaseURL, run.Alphabet, run.Workers, string(run.Status),
		run.Discovered, run.Requests, run.Attempts, run.Failed,
		run.Output, run.PersistError,
		formatTime(run.StartedAt), formatNullTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun updates the counters and final status of a run
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *types.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, discovered = ?, requests = ?, attempts = ?, failed = ?,
			output = ?, persist_error = ?, finished_at = ?
		WHERE id = ?
	`,
		string(run.Status), run.Discovered, run.Requests, run.Attempts, run.Failed,
		run.Output, run.PersistError, formatNullTime(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*types.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, base_url, alphabet, workers, status, discovered, requests,
		       attempts, failed, output, persist_error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of 0 returns all runs.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*types.Run, error) {
	query := `
		SELECT id, base_url, alphabet, workers, status, discovered, requests,
		       attempts, failed, output, persist_error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// RecordQuery appends one entry to the per-prefix query log
func (s *SQLiteStorage) RecordQuery(ctx context.Context, q *types.QueryRecord) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queries (run_id, prefix, shape, items, new_items, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		q.RunID, q.Prefix, q.Shape, q.Items, q.NewItems, q.Error,
		q.Duration.Milliseconds(), formatTime(q.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record query (run=%s, prefix=%q): %w", q.RunID, q.Prefix, err)
	}
	return nil
}

// GetQueries returns the query log of a run in insertion order
func (s *SQLiteStorage) GetQueries(ctx context.Context, runID string) ([]*types.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, prefix, shape, items, new_items, error, duration_ms, created_at
		FROM queries
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query log for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.QueryRecord
	for rows.Next() {
		q := &types.QueryRecord{}
		var durationMs int64
		var createdAt string
		if err := rows.Scan(&q.RunID, &q.Prefix, &q.Shape, &q.Items, &q.NewItems, &q.Error, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}
		q.Duration = time.Duration(durationMs) * time.Millisecond
		if q.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query rows: %w", err)
	}
	return out, nil
}

// SaveItems replaces the discovered items of a run in a single transaction
func (s *SQLiteStorage) SaveItems(ctx context.Context, runID string, items []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear items for run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO items (run_id, position, item) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, runID, i, item); err != nil {
			return fmt.Errorf("failed to insert item %d for run %s: %w", i, runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit items: %w", err)
	}
	return nil
}

// GetItems returns the discovered items of a run in first-seen order
func (s *SQLiteStorage) GetItems(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item FROM items WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var items []string
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*types.Run, error) {
	run := &types.Run{}
	var status, startedAt string
	var finishedAt sql.NullString
	err := row.Scan(
		&run.ID,
		&run.BaseURL,
		&run.Alphabet,
		&run.Workers,
		&status,
		&run.Discovered,
		&run.Requests,
		&run.Attempts,
		&run.Failed,
		&run.Output,
		&run.PersistError,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = types.RunStatus(status)
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}
	return run, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
