// Package seed loads normalized targets and historical run results from a
// YAML file into storage.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"indexwatch/internal/models"
	"indexwatch/internal/storage"
	"indexwatch/internal/urlutil"
)

const runDateLayout = "2006-01-02"

// File is the document layout:
//
//	targets:
//	  - id: t1
//	    label: keyword one
//	    url: https://example.com/paper
//	    answer_search: Y
//	    answer_pdf: N
//	runs:
//	  - date: 2024-12-28
//	    results:
//	      - target_id: t1
//	        found_exposed: true
type File struct {
	Targets []TargetSpec `yaml:"targets"`
	Runs    []RunSpec    `yaml:"runs"`
}

// TargetSpec is one target row.
type TargetSpec struct {
	ID           string          `yaml:"id"`
	Label        string          `yaml:"label"`
	URL          string          `yaml:"url"`
	AnswerSearch models.Tristate `yaml:"answer_search"`
	AnswerPDF    models.Tristate `yaml:"answer_pdf"`
	Note         *string         `yaml:"note"`
}

// RunSpec holds previously observed results for one date.
type RunSpec struct {
	Date    string       `yaml:"date"`
	Results []ResultSpec `yaml:"results"`
}

// ResultSpec is one historical observation.
type ResultSpec struct {
	TargetID     string  `yaml:"target_id"`
	FoundExposed bool    `yaml:"found_exposed"`
	IsPDF        bool    `yaml:"is_pdf"`
	HTTPStatus   *int    `yaml:"http_status"`
	FinalURL     *string `yaml:"final_url"`
	ErrorMessage *string `yaml:"error_message"`
}

// Options controls how Apply treats existing data.
type Options struct {
	// Force replaces the results of runs that already have some.
	Force bool
}

// Summary counts what Apply wrote.
type Summary struct {
	Targets        int `json:"targets"`
	RunsImported   int `json:"runs_imported"`
	RunsSkipped    int `json:"runs_skipped"`
	Results        int `json:"results"`
	ResultsSkipped int `json:"results_skipped"`
}

// Parse decodes and validates a seed document.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and parses the seed document at path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

func (f *File) normalize() error {
	seen := make(map[string]bool, len(f.Targets))
	for i := range f.Targets {
		t := &f.Targets[i]
		if t.ID == "" {
			return fmt.Errorf("target #%d: id is required", i+1)
		}
		if seen[t.ID] {
			return fmt.Errorf("target %s: duplicate id", t.ID)
		}
		seen[t.ID] = true
		u, err := urlutil.Normalize(t.URL)
		if err != nil {
			return fmt.Errorf("target %s: %w", t.ID, err)
		}
		t.URL = u
	}

	dates := make(map[string]bool, len(f.Runs))
	for i := range f.Runs {
		r := &f.Runs[i]
		if _, err := time.Parse(runDateLayout, r.Date); err != nil {
			return fmt.Errorf("run #%d: date must be YYYY-MM-DD, got %q", i+1, r.Date)
		}
		if dates[r.Date] {
			return fmt.Errorf("run %s: duplicate date", r.Date)
		}
		dates[r.Date] = true
	}
	return nil
}

// Target converts the row into a model. An unknown PDF answer counts as no.
func (t TargetSpec) Target() *models.Target {
	return &models.Target{
		ID:                  t.ID,
		Label:               t.Label,
		URL:                 t.URL,
		AnswerSearchExposed: t.AnswerSearch,
		AnswerPDFExposed:    t.AnswerPDF.IsYes(),
		Note:                t.Note,
	}
}

// Apply upserts every target, then imports runs. A run that already has
// results is left untouched unless opts.Force is set. Results for targets
// that do not exist are skipped.
func Apply(ctx context.Context, store storage.Storer, f *File, opts Options) (*Summary, error) {
	sum := &Summary{}
	for _, spec := range f.Targets {
		if err := store.UpsertTarget(ctx, spec.Target()); err != nil {
			return sum, fmt.Errorf("upsert target %s: %w", spec.ID, err)
		}
		sum.Targets++
	}
	if len(f.Runs) == 0 {
		return sum, nil
	}

	targets, err := store.GetAllTargets(ctx)
	if err != nil {
		return sum, fmt.Errorf("load targets: %w", err)
	}
	known := make(map[string]bool, len(targets))
	for _, t := range targets {
		known[t.ID] = true
	}

	for _, spec := range f.Runs {
		run, err := store.EnsureRun(ctx, spec.Date)
		if err != nil {
			return sum, fmt.Errorf("ensure run %s: %w", spec.Date, err)
		}
		if run.ResultCount > 0 {
			if !opts.Force {
				log.Printf("run %s already has %d results, skipping", spec.Date, run.ResultCount)
				sum.RunsSkipped++
				continue
			}
			log.Printf("replacing %d results of run %s", run.ResultCount, spec.Date)
			if err := store.DeleteRunResults(ctx, run.ID); err != nil {
				return sum, fmt.Errorf("clear run %s: %w", spec.Date, err)
			}
		}

		for _, r := range spec.Results {
			if !known[r.TargetID] {
				log.Printf("run %s: target %s not found, skipping", spec.Date, r.TargetID)
				sum.ResultsSkipped++
				continue
			}
			result := &models.RunResult{
				RunID:     run.ID,
				TargetID:  r.TargetID,
				CheckedAt: run.CreatedAt,
				Outcome: models.Outcome{
					FoundExposed: r.FoundExposed,
					IsPDF:        r.IsPDF,
					HTTPStatus:   r.HTTPStatus,
					FinalURL:     r.FinalURL,
					ErrorMessage: r.ErrorMessage,
				},
			}
			if err := store.UpsertRunResult(ctx, result); err != nil {
				return sum, fmt.Errorf("run %s: save result for %s: %w", spec.Date, r.TargetID, err)
			}
			sum.Results++
		}
		sum.RunsImported++
	}
	return sum, nil
}
