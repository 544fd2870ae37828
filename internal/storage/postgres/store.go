package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"indexwatch/internal/models"
	"indexwatch/internal/storage"
)

// PostgresStore implements the storage.Storer interface for PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// New creates a new PostgresStore and establishes a connection to the database.
// It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &PostgresStore{db: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// migrate ensures the database schema is created.
func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS targets (
		id            TEXT PRIMARY KEY,
		label         TEXT NOT NULL DEFAULT '',
		url           TEXT NOT NULL,
		answer_search BOOLEAN,
		answer_pdf    BOOLEAN NOT NULL DEFAULT FALSE,
		note          TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		run_date   TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS run_results (
		id            TEXT PRIMARY KEY,
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		target_id     TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		found_exposed BOOLEAN NOT NULL,
		is_pdf        BOOLEAN NOT NULL,
		http_status   INTEGER,
		final_url     TEXT,
		error_message TEXT,
		checked_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (run_id, target_id)
	);
	CREATE INDEX IF NOT EXISTS idx_run_results_target_id ON run_results (target_id);
	`
	_, err := s.db.Exec(ctx, schema)
	return err
}

func tristateBool(t models.Tristate) *bool {
	if t == models.Unknown {
		return nil
	}
	b := t.IsYes()
	return &b
}

func boolTristate(b *bool) models.Tristate {
	if b == nil {
		return models.Unknown
	}
	return models.TristateOf(*b)
}

// UpsertTarget implements the Storer interface.
func (s *PostgresStore) UpsertTarget(ctx context.Context, target *models.Target) error {
	if target.CreatedAt.IsZero() {
		target.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO targets (id, label, url, answer_search, answer_pdf, note, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		label = EXCLUDED.label,
		url = EXCLUDED.url,
		answer_search = EXCLUDED.answer_search,
		answer_pdf = EXCLUDED.answer_pdf,
		note = COALESCE(EXCLUDED.note, targets.note)`
	_, err := s.db.Exec(ctx, query, target.ID, target.Label, target.URL,
		tristateBool(target.AnswerSearchExposed), target.AnswerPDFExposed, target.Note, target.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert target: %w", err)
	}
	return nil
}

const targetColumns = `id, label, url, answer_search, answer_pdf, note, created_at`

func scanTarget(row pgx.Row) (models.Target, error) {
	var (
		t      models.Target
		search *bool
	)
	if err := row.Scan(&t.ID, &t.Label, &t.URL, &search, &t.AnswerPDFExposed, &t.Note, &t.CreatedAt); err != nil {
		return t, err
	}
	t.AnswerSearchExposed = boolTristate(search)
	return t, nil
}

// GetTargetByID implements the Storer interface.
func (s *PostgresStore) GetTargetByID(ctx context.Context, id string) (*models.Target, error) {
	t, err := scanTarget(s.db.QueryRow(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target by id: %w", err)
	}
	return &t, nil
}

// GetAllTargets implements the Storer interface.
func (s *PostgresStore) GetAllTargets(ctx context.Context) ([]models.Target, error) {
	rows, err := s.db.Query(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY id`)
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

// UpdateTargetNote implements the Storer interface.
func (s *PostgresStore) UpdateTargetNote(ctx context.Context, id string, note *string) error {
	tag, err := s.db.Exec(ctx, `UPDATE targets SET note = $1 WHERE id = $2`, note, id)
	if err != nil {
		return fmt.Errorf("failed to update target note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// EnsureRun implements the Storer interface.
func (s *PostgresStore) EnsureRun(ctx context.Context, runDate string) (*models.Run, error) {
	query := `INSERT INTO runs (id, run_date) VALUES ($1, $2) ON CONFLICT (run_date) DO NOTHING`
	if _, err := s.db.Exec(ctx, query, storage.NewID("run_"), runDate); err != nil {
		return nil, fmt.Errorf("failed to ensure run: %w", err)
	}
	return s.GetRunByDate(ctx, runDate)
}

// GetRunByDate implements the Storer interface.
func (s *PostgresStore) GetRunByDate(ctx context.Context, runDate string) (*models.Run, error) {
	query := `
	SELECT r.id, r.run_date, r.created_at, (SELECT COUNT(*) FROM run_results rr WHERE rr.run_id = r.id)
	FROM runs r WHERE r.run_date = $1`
	var run models.Run
	err := s.db.QueryRow(ctx, query, runDate).Scan(&run.ID, &run.RunDate, &run.CreatedAt, &run.ResultCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run by date: %w", err)
	}
	return &run, nil
}

// ListRuns implements the Storer interface.
func (s *PostgresStore) ListRuns(ctx context.Context) ([]models.Run, error) {
	query := `
	SELECT r.id, r.run_date, r.created_at, COUNT(rr.id)
	FROM runs r LEFT JOIN run_results rr ON rr.run_id = r.id
	GROUP BY r.id, r.run_date, r.created_at
	ORDER BY r.run_date`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		if err := rows.Scan(&run.ID, &run.RunDate, &run.CreatedAt, &run.ResultCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpsertRunResult implements the Storer interface.
func (s *PostgresStore) UpsertRunResult(ctx context.Context, result *models.RunResult) error {
	if result.CheckedAt.IsZero() {
		result.CheckedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO run_results (id, run_id, target_id, found_exposed, is_pdf, http_status, final_url, error_message, checked_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (run_id, target_id) DO UPDATE SET
		found_exposed = EXCLUDED.found_exposed,
		is_pdf = EXCLUDED.is_pdf,
		http_status = EXCLUDED.http_status,
		final_url = EXCLUDED.final_url,
		error_message = EXCLUDED.error_message,
		checked_at = EXCLUDED.checked_at
	RETURNING id`
	err := s.db.QueryRow(ctx, query,
		storage.NewID("rr_"), result.RunID, result.TargetID,
		result.FoundExposed, result.IsPDF, result.HTTPStatus, result.FinalURL, result.ErrorMessage,
		result.CheckedAt,
	).Scan(&result.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert run result: %w", err)
	}
	return nil
}

// ListRunResults implements the Storer interface.
func (s *PostgresStore) ListRunResults(ctx context.Context, runID string) ([]models.RunResult, error) {
	query := `
	SELECT id, run_id, target_id, found_exposed, is_pdf, http_status, final_url, error_message, checked_at
	FROM run_results WHERE run_id = $1 ORDER BY target_id`
	rows, err := s.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run results: %w", err)
	}
	defer rows.Close()

	var results []models.RunResult
	for rows.Next() {
		var r models.RunResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.TargetID, &r.FoundExposed, &r.IsPDF, &r.HTTPStatus, &r.FinalURL, &r.ErrorMessage, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteRunResults implements the Storer interface.
func (s *PostgresStore) DeleteRunResults(ctx context.Context, runID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM run_results WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete run results: %w", err)
	}
	return nil
}
