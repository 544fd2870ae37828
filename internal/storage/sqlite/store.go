package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"indexwatch/internal/models"
	"indexwatch/internal/storage"
)

// SQLiteStore implements the storage.Storer interface for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore and establishes a connection to the database file.
// It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dataSourceName)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// migrate ensures the database schema is created.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS targets (
	id            TEXT PRIMARY KEY,
	label         TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL,
	answer_search INTEGER,
	answer_pdf    INTEGER NOT NULL DEFAULT 0,
	note          TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	run_date   TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_results (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	target_id     TEXT NOT NULL,
	found_exposed INTEGER NOT NULL,
	is_pdf        INTEGER NOT NULL,
	http_status   INTEGER,
	final_url     TEXT,
	error_message TEXT,
	checked_at    TEXT NOT NULL,
	UNIQUE (run_id, target_id),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE,
	FOREIGN KEY(target_id) REFERENCES targets(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_run_results_target_id ON run_results (target_id);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// UpsertTarget inserts a target or refreshes its answer-set fields. An
// existing note is kept when the incoming one is nil.
func (s *SQLiteStore) UpsertTarget(ctx context.Context, target *models.Target) error {
	if target.CreatedAt.IsZero() {
		target.CreatedAt = time.Now().UTC()
	}
	query := `
INSERT INTO targets (id, label, url, answer_search, answer_pdf, note, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	label = excluded.label,
	url = excluded.url,
	answer_search = excluded.answer_search,
	answer_pdf = excluded.answer_pdf,
	note = COALESCE(excluded.note, targets.note)`
	_, err := s.db.ExecContext(ctx, query,
		target.ID, target.Label, target.URL,
		storage.TristateValue(target.AnswerSearchExposed), target.AnswerPDFExposed,
		target.Note, target.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert target: %w", err)
	}
	return nil
}

const targetColumns = `id, label, url, answer_search, answer_pdf, note, created_at`

func scanTarget(row interface{ Scan(...any) error }) (models.Target, error) {
	var (
		t            models.Target
		answerSearch sql.NullInt64
		createdAtStr string
	)
	if err := row.Scan(&t.ID, &t.Label, &t.URL, &answerSearch, &t.AnswerPDFExposed, &t.Note, &createdAtStr); err != nil {
		return t, err
	}
	t.AnswerSearchExposed = storage.TristateFromNull(answerSearch)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return t, nil
}

// GetTargetByID retrieves a single target by its unique ID.
func (s *SQLiteStore) GetTargetByID(ctx context.Context, id string) (*models.Target, error) {
	t, err := scanTarget(s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target by id: %w", err)
	}
	return &t, nil
}

// GetAllTargets retrieves all targets ordered by id.
func (s *SQLiteStore) GetAllTargets(ctx context.Context) ([]models.Target, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all targets: %w", err)
	}
	defer rows.Close()
	var targets []models.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// UpdateTargetNote replaces the free-text note of a target.
func (s *SQLiteStore) UpdateTargetNote(ctx context.Context, id string, note *string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE targets SET note = ? WHERE id = ?`, note, id)
	if err != nil {
		return fmt.Errorf("failed to update target note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// EnsureRun returns the run for runDate, creating it on first use.
func (s *SQLiteStore) EnsureRun(ctx context.Context, runDate string) (*models.Run, error) {
	query := `INSERT INTO runs (id, run_date, created_at) VALUES (?, ?, ?) ON CONFLICT(run_date) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, storage.NewID("run_"), runDate, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("failed to ensure run: %w", err)
	}
	return s.GetRunByDate(ctx, runDate)
}

// GetRunByDate retrieves a run and its result count.
func (s *SQLiteStore) GetRunByDate(ctx context.Context, runDate string) (*models.Run, error) {
	query := `
SELECT r.id, r.run_date, r.created_at, (SELECT COUNT(*) FROM run_results rr WHERE rr.run_id = r.id)
FROM runs r WHERE r.run_date = ?`
	var (
		run          models.Run
		createdAtStr string
	)
	err := s.db.QueryRowContext(ctx, query, runDate).Scan(&run.ID, &run.RunDate, &createdAtStr, &run.ResultCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run by date: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return &run, nil
}

// ListRuns retrieves all runs in ascending date order.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]models.Run, error) {
	query := `
SELECT r.id, r.run_date, r.created_at, COUNT(rr.id)
FROM runs r LEFT JOIN run_results rr ON rr.run_id = r.id
GROUP BY r.id, r.run_date, r.created_at
ORDER BY r.run_date`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()
	var runs []models.Run
	for rows.Next() {
		var (
			run          models.Run
			createdAtStr string
		)
		if err := rows.Scan(&run.ID, &run.RunDate, &createdAtStr, &run.ResultCount); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpsertRunResult stores an observation, replacing any earlier one for the
// same run and target. result.ID is set to the stored row's id.
func (s *SQLiteStore) UpsertRunResult(ctx context.Context, result *models.RunResult) error {
	query := `
INSERT INTO run_results (id, run_id, target_id, found_exposed, is_pdf, http_status, final_url, error_message, checked_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, target_id) DO UPDATE SET
	found_exposed = excluded.found_exposed,
	is_pdf = excluded.is_pdf,
	http_status = excluded.http_status,
	final_url = excluded.final_url,
	error_message = excluded.error_message,
	checked_at = excluded.checked_at
RETURNING id`
	if result.CheckedAt.IsZero() {
		result.CheckedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, query,
		storage.NewID("rr_"), result.RunID, result.TargetID,
		result.FoundExposed, result.IsPDF, result.HTTPStatus, result.FinalURL, result.ErrorMessage,
		result.CheckedAt.Format(time.RFC3339Nano),
	).Scan(&result.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert run result: %w", err)
	}
	return nil
}

// ListRunResults retrieves every observation of a run ordered by target id.
func (s *SQLiteStore) ListRunResults(ctx context.Context, runID string) ([]models.RunResult, error) {
	query := `
SELECT id, run_id, target_id, found_exposed, is_pdf, http_status, final_url, error_message, checked_at
FROM run_results WHERE run_id = ? ORDER BY target_id`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run results: %w", err)
	}
	defer rows.Close()
	var results []models.RunResult
	for rows.Next() {
		var (
			r            models.RunResult
			checkedAtStr string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.TargetID, &r.FoundExposed, &r.IsPDF, &r.HTTPStatus, &r.FinalURL, &r.ErrorMessage, &checkedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan run result row: %w", err)
		}
		r.CheckedAt, _ = time.Parse(time.RFC3339Nano, checkedAtStr)
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteRunResults removes all observations of a run, for re-seeding.
func (s *SQLiteStore) DeleteRunResults(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_results WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run results: %w", err)
	}
	return nil
}
