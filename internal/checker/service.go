package checker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"indexwatch/internal/models"
	"indexwatch/internal/priority"
	"indexwatch/internal/progress"
	"indexwatch/internal/storage"
)

const runDateLayout = "2006-01-02"

var (
	// ErrInvalidRunDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidRunDate = errors.New("run date must be YYYY-MM-DD")
	// ErrRunInProgress is returned when a batch is already running.
	ErrRunInProgress = errors.New("a run is already in progress")
)

// RunSummary describes a completed batch.
type RunSummary struct {
	RunID        string `json:"run_id"`
	RunDate      string `json:"run_date"`
	CheckedCount int    `json:"checked_count"`
	TotalTargets int    `json:"total_targets"`
}

// Service runs probes for a date and stores the outcomes.
type Service struct {
	store       storage.Storer
	prober      URLProber
	concurrency int
	location    *time.Location
	hub         *progress.Hub
	now         func() time.Time

	runMu sync.Mutex
}

// NewService wires a Service. hub may be nil.
func NewService(store storage.Storer, prober URLProber, concurrency int, location *time.Location, hub *progress.Hub) *Service {
	if location == nil {
		location = time.UTC
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		store:       store,
		prober:      prober,
		concurrency: concurrency,
		location:    location,
		hub:         hub,
		now:         time.Now,
	}
}

// Today returns the current date in the service's time zone.
func (s *Service) Today() string {
	return s.now().In(s.location).Format(runDateLayout)
}

// ValidateRunDate checks the YYYY-MM-DD form.
func ValidateRunDate(date string) error {
	if _, err := time.Parse(runDateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRunDate, date)
	}
	return nil
}

// RunDate probes every target for date in priority order and upserts the
// outcomes. A failed save is logged and skipped; the rest still run.
func (s *Service) RunDate(ctx context.Context, date string) (*RunSummary, error) {
	if err := ValidateRunDate(date); err != nil {
		return nil, err
	}
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	run, err := s.store.EnsureRun(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("ensure run %s: %w", date, err)
	}
	targets, err := s.store.GetAllTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}
	summary := &RunSummary{RunID: run.ID, RunDate: date, TotalTargets: len(targets)}
	if len(targets) == 0 {
		log.Printf("no targets to check for run %s", date)
		s.hub.Publish(progress.Event{RunDate: date, Done: true})
		return summary, nil
	}

	priority.Sort(targets)
	log.Printf("checking %d targets for run %s (YY > YN > NY > NN, concurrency %d)", len(targets), date, s.concurrency)

	batch := make([]models.ProbeTarget, len(targets))
	for i, t := range targets {
		batch[i] = models.ProbeTarget{ID: t.ID, URL: t.URL}
	}
	outcomes := RunBatch(ctx, s.prober, batch, s.concurrency, func(completed, total int) {
		s.hub.Publish(progress.Event{RunDate: date, Completed: completed, Total: total})
	})

	for _, t := range targets {
		outcome, ok := outcomes[t.ID]
		if !ok {
			continue
		}
		result := &models.RunResult{
			RunID:     run.ID,
			TargetID:  t.ID,
			CheckedAt: s.now().UTC(),
			Outcome:   outcome,
		}
		if err := s.store.UpsertRunResult(ctx, result); err != nil {
			log.Printf("error saving result for target %s: %v", t.ID, err)
			continue
		}
		summary.CheckedCount++
	}

	s.hub.Publish(progress.Event{RunDate: date, Completed: len(targets), Total: len(targets), Done: true})
	log.Printf("run %s finished: %d/%d results saved", date, summary.CheckedCount, summary.TotalTargets)
	return summary, nil
}

// CheckTarget re-probes a single target for date and upserts the outcome.
func (s *Service) CheckTarget(ctx context.Context, targetID, date string) (*models.RunResult, error) {
	if err := ValidateRunDate(date); err != nil {
		return nil, err
	}
	target, err := s.store.GetTargetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("get target %s: %w", targetID, err)
	}
	run, err := s.store.EnsureRun(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("ensure run %s: %w", date, err)
	}

	result := &models.RunResult{
		RunID:    run.ID,
		TargetID: target.ID,
		Outcome:  s.prober.Probe(ctx, target.URL),
	}
	result.CheckedAt = s.now().UTC()
	if err := s.store.UpsertRunResult(ctx, result); err != nil {
		return nil, fmt.Errorf("save result for target %s: %w", targetID, err)
	}
	return result, nil
}
