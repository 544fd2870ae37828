package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"indexwatch/internal/models"
)

// ErrNotFound is returned when a requested resource is not found
var ErrNotFound = errors.New("not found")

// Storer defines the storage operations on targets, runs and run results.
//
// Runs are keyed by their date: EnsureRun returns the existing run for a date
// instead of creating a second one. Run results are keyed by (run, target):
// UpsertRunResult overwrites the previous observation in place.
type Storer interface {
	UpsertTarget(ctx context.Context, target *models.Target) error
	GetTargetByID(ctx context.Context, id string) (*models.Target, error)
	GetAllTargets(ctx context.Context) ([]models.Target, error)
	UpdateTargetNote(ctx context.Context, id string, note *string) error

	EnsureRun(ctx context.Context, runDate string) (*models.Run, error)
	GetRunByDate(ctx context.Context, runDate string) (*models.Run, error)
	ListRuns(ctx context.Context) ([]models.Run, error)

	UpsertRunResult(ctx context.Context, result *models.RunResult) error
	ListRunResults(ctx context.Context, runID string) ([]models.RunResult, error)
	DeleteRunResults(ctx context.Context, runID string) error

	Close() error
}

// NewID returns a time-ordered identifier with the given prefix.
func NewID(prefix string) string {
	return prefix + uuid.Must(uuid.NewV7()).String()
}
