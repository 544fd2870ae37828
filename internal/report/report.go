// Package report assembles the dashboard and changelog views from stored
// runs and exports the result table.
package report

import (
	"context"
	"fmt"

	"indexwatch/internal/diff"
	"indexwatch/internal/models"
	"indexwatch/internal/priority"
	"indexwatch/internal/storage"
)

// Row is one target in the result table, with its observation in the
// selected run. Result is nil when the target was not checked in that run.
type Row struct {
	models.Target
	Bucket string            `json:"bucket"`
	Result *models.RunResult `json:"result"`
}

// Metric compares a run-level count with the previous run and the answer set.
type Metric struct {
	Count         int  `json:"count"`
	Percentage    int  `json:"percentage"`
	PreviousCount *int `json:"previous_count"`
	Change        *int `json:"change"`
	AnswerCount   int  `json:"answer_count"`
	AnswerChange  int  `json:"answer_change"`
}

// CheckedMetric counts stored results of the selected run.
type CheckedMetric struct {
	Count         int  `json:"count"`
	Total         int  `json:"total"`
	PreviousCount *int `json:"previous_count"`
	Change        *int `json:"change"`
}

// KPIs summarizes the selected run.
type KPIs struct {
	TotalTargets int           `json:"total_targets"`
	Exposure     Metric        `json:"exposure"`
	PDF          Metric        `json:"pdf"`
	Checked      CheckedMetric `json:"checked"`
}

// Dashboard is the full view for one selected run. RunDate is empty when
// there are no runs yet.
type Dashboard struct {
	RunDate            string                       `json:"run_date"`
	PreviousRunDate    *string                      `json:"previous_run_date"`
	KPIs               KPIs                         `json:"kpis"`
	Rows               []Row                        `json:"rows"`
	DiffsVsGroundTruth []diff.TargetDiff            `json:"diffs_vs_ground_truth"`
	DiffsByDate        map[string][]diff.TargetDiff `json:"diffs_by_date"`
}

// Reporter reads runs from storage and builds report views.
type Reporter struct {
	store storage.Storer
}

// New creates a Reporter.
func New(store storage.Storer) *Reporter {
	return &Reporter{store: store}
}

type history struct {
	targets []models.Target
	runs    []models.Run
	results map[string][]models.RunResult // by run id
}

func (r *Reporter) load(ctx context.Context) (*history, error) {
	targets, err := r.store.GetAllTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}
	runs, err := r.store.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	h := &history{targets: targets, runs: runs, results: make(map[string][]models.RunResult, len(runs))}
	for _, run := range runs {
		results, err := r.store.ListRunResults(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("load results of run %s: %w", run.RunDate, err)
		}
		h.results[run.ID] = results
	}
	return h, nil
}

func (h *history) chronological() map[string][]diff.TargetDiff {
	dated := make([]diff.Dated, len(h.runs))
	for i, run := range h.runs {
		dated[i] = diff.Dated{Date: run.RunDate, Snapshot: diff.FromResults(h.results[run.ID])}
	}
	return diff.Chronological(dated, diff.GroundTruth(h.targets))
}

// Changelog returns the changes of every run against its predecessor, keyed
// by run date. The first run is compared with the answer set.
func (r *Reporter) Changelog(ctx context.Context) (map[string][]diff.TargetDiff, error) {
	h, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return h.chronological(), nil
}

// Dashboard builds the view for runDate. If runDate is empty or has no run,
// the latest run is used.
func (r *Reporter) Dashboard(ctx context.Context, runDate string) (*Dashboard, error) {
	h, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	selected := -1
	for i, run := range h.runs {
		if run.RunDate == runDate {
			selected = i
			break
		}
	}
	if selected < 0 && len(h.runs) > 0 {
		selected = len(h.runs) - 1
	}

	var current, previous []models.RunResult
	d := &Dashboard{}
	if selected >= 0 {
		d.RunDate = h.runs[selected].RunDate
		current = h.results[h.runs[selected].ID]
		if selected > 0 {
			prev := h.runs[selected-1]
			d.PreviousRunDate = &prev.RunDate
			previous = h.results[prev.ID]
		}
	}

	byTarget := make(map[string]*models.RunResult, len(current))
	for i := range current {
		byTarget[current[i].TargetID] = &current[i]
	}
	d.Rows = make([]Row, len(h.targets))
	for i, t := range h.targets {
		d.Rows[i] = Row{Target: t, Bucket: priority.Bucket(priority.ScoreOf(t)), Result: byTarget[t.ID]}
	}
	priority.Sort(d.Rows)

	d.KPIs = kpis(h.targets, current, previous, selected > 0)

	groundTruth := diff.GroundTruth(h.targets)
	if selected >= 0 {
		d.DiffsVsGroundTruth = diff.AgainstGroundTruth(groundTruth, diff.FromResults(current))
	} else {
		d.DiffsVsGroundTruth = []diff.TargetDiff{}
	}
	d.DiffsByDate = h.chronological()
	return d, nil
}

func kpis(targets []models.Target, current, previous []models.RunResult, hasPrevious bool) KPIs {
	total := len(targets)
	var answerExposed, answerPDF int
	for _, t := range targets {
		if t.AnswerSearchExposed.IsYes() {
			answerExposed++
		}
		if t.AnswerPDFExposed {
			answerPDF++
		}
	}
	curExposed, curPDF := countFlags(current)

	k := KPIs{
		TotalTargets: total,
		Exposure: Metric{
			Count:        curExposed,
			Percentage:   percentage(curExposed, total),
			AnswerCount:  answerExposed,
			AnswerChange: curExposed - answerExposed,
		},
		PDF: Metric{
			Count:        curPDF,
			Percentage:   percentage(curPDF, total),
			AnswerCount:  answerPDF,
			AnswerChange: curPDF - answerPDF,
		},
		Checked: CheckedMetric{Count: len(current), Total: total},
	}
	if hasPrevious {
		prevExposed, prevPDF := countFlags(previous)
		k.Exposure.PreviousCount, k.Exposure.Change = compare(curExposed, prevExposed)
		k.PDF.PreviousCount, k.PDF.Change = compare(curPDF, prevPDF)
		k.Checked.PreviousCount, k.Checked.Change = compare(len(current), len(previous))
	}
	return k
}

func countFlags(results []models.RunResult) (exposed, pdf int) {
	for _, r := range results {
		if r.FoundExposed {
			exposed++
		}
		if r.IsPDF {
			pdf++
		}
	}
	return exposed, pdf
}

func compare(cur, prev int) (*int, *int) {
	change := cur - prev
	return &prev, &change
}

// percentage rounds half away from zero, as the dashboard displays it.
func percentage(n, total int) int {
	if total == 0 {
		return 0
	}
	return (n*200 + total) / (2 * total)
}
