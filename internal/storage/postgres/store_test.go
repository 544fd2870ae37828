package postgres

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexwatch/internal/models"
	"indexwatch/internal/storage"
)

// Set POSTGRES_TEST_URL to run against a disposable database.
func openStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	s, err := New(t.Context(), url)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.Exec(t.Context(), `TRUNCATE run_results, runs, targets`)
		s.Close()
	})
	return s
}

func TestPostgresRunLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()

	require.NoError(t, s.UpsertTarget(ctx, &models.Target{ID: "t1", URL: "https://a.example", AnswerSearchExposed: models.Yes}))
	got, err := s.GetTargetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.Yes, got.AnswerSearchExposed)

	run1, err := s.EnsureRun(ctx, "2024-02-01")
	require.NoError(t, err)
	run2, err := s.EnsureRun(ctx, "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, run1.ID, run2.ID)

	status := 200
	r := &models.RunResult{RunID: run1.ID, TargetID: "t1", Outcome: models.Outcome{HTTPStatus: &status}}
	require.NoError(t, s.UpsertRunResult(ctx, r))
	r2 := &models.RunResult{RunID: run1.ID, TargetID: "t1", Outcome: models.Outcome{FoundExposed: true}}
	require.NoError(t, s.UpsertRunResult(ctx, r2))
	assert.Equal(t, r.ID, r2.ID)

	results, err := s.ListRunResults(ctx, run1.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].FoundExposed)
	assert.Nil(t, results[0].HTTPStatus)

	_, err = s.GetRunByDate(ctx, "1999-01-01")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
