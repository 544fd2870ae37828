// Package diff compares keyed snapshots of probe outcomes.
//
// Compare is the pairwise primitive. Chronological composes it over an
// ordered run history, using each run's predecessor as its baseline and the
// answer set as the baseline of the first run. Nothing here touches the
// network or storage, and no operation can fail.
package diff

import (
	"slices"

	"indexwatch/internal/models"
)

// Field names the attribute a FieldDiff refers to.
type Field string

const (
	FieldExposure     Field = "exposure"
	FieldPDFExposure  Field = "pdfExposure"
	FieldHTTPStatus   Field = "httpStatus"
	FieldFinalURL     Field = "finalUrl"
	FieldErrorMessage Field = "errorMessage"
	FieldPresence     Field = "presence"
)

const (
	presenceExists  = "exists"
	presenceMissing = "missing"
)

// Entry is one target's state inside a Snapshot.
type Entry struct {
	FoundExposed bool
	IsPDF        bool
	HTTPStatus   *int
	FinalURL     *string
	ErrorMessage *string

	// AnswerOnly marks an entry built from the answer set. Only the two
	// exposure flags are meaningful for it.
	AnswerOnly bool
}

// Snapshot maps target id to its state in one run, or in the answer set.
type Snapshot map[string]Entry

// FieldDiff is a single changed attribute.
type FieldDiff struct {
	Field    Field `json:"field"`
	OldValue any   `json:"old_value"`
	NewValue any   `json:"new_value"`
}

// TargetDiff lists the changed attributes of one target. Diffs is never empty.
type TargetDiff struct {
	TargetID string      `json:"target_id"`
	Diffs    []FieldDiff `json:"diffs"`
}

// Dated is a run snapshot tagged with its run date (YYYY-MM-DD).
type Dated struct {
	Date     string
	Snapshot Snapshot
}

// Compare returns the per-target differences between baseline and current,
// ordered by target id. Targets without changes are omitted.
func Compare(baseline, current Snapshot) []TargetDiff {
	ids := make([]string, 0, len(baseline)+len(current))
	for id := range baseline {
		ids = append(ids, id)
	}
	for id := range current {
		if _, ok := baseline[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	out := []TargetDiff{}
	for _, id := range ids {
		old, inBaseline := baseline[id]
		cur, inCurrent := current[id]

		var fields []FieldDiff
		switch {
		case inBaseline && inCurrent:
			fields = compareEntries(old, cur)
		case inBaseline:
			fields = []FieldDiff{{Field: FieldPresence, OldValue: presenceExists, NewValue: presenceMissing}}
		default:
			fields = []FieldDiff{{Field: FieldPresence, OldValue: presenceMissing, NewValue: presenceExists}}
		}
		if len(fields) > 0 {
			out = append(out, TargetDiff{TargetID: id, Diffs: fields})
		}
	}
	return out
}

func compareEntries(old, cur Entry) []FieldDiff {
	var fields []FieldDiff
	if old.FoundExposed != cur.FoundExposed {
		fields = append(fields, FieldDiff{Field: FieldExposure, OldValue: old.FoundExposed, NewValue: cur.FoundExposed})
	}
	if old.IsPDF != cur.IsPDF {
		fields = append(fields, FieldDiff{Field: FieldPDFExposure, OldValue: old.IsPDF, NewValue: cur.IsPDF})
	}
	// The answer set records no transport details.
	if !old.AnswerOnly && !cur.AnswerOnly {
		if !equalPtr(old.HTTPStatus, cur.HTTPStatus) {
			fields = append(fields, FieldDiff{Field: FieldHTTPStatus, OldValue: deref(old.HTTPStatus), NewValue: deref(cur.HTTPStatus)})
		}
		if !equalPtr(old.FinalURL, cur.FinalURL) {
			fields = append(fields, FieldDiff{Field: FieldFinalURL, OldValue: deref(old.FinalURL), NewValue: deref(cur.FinalURL)})
		}
	}
	if cur.ErrorMessage != nil && old.ErrorMessage == nil {
		fields = append(fields, FieldDiff{Field: FieldErrorMessage, OldValue: nil, NewValue: *cur.ErrorMessage})
	}
	return fields
}

// Chronological diffs every run against the run before it. The earliest run
// is compared with groundTruth. Dates without changes are left out of the
// result.
func Chronological(runs []Dated, groundTruth Snapshot) map[string][]TargetDiff {
	ordered := slices.Clone(runs)
	slices.SortStableFunc(ordered, func(a, b Dated) int {
		switch {
		case a.Date < b.Date:
			return -1
		case a.Date > b.Date:
			return 1
		}
		return 0
	})

	byDate := make(map[string][]TargetDiff)
	baseline := groundTruth
	for _, run := range ordered {
		if diffs := Compare(baseline, run.Snapshot); len(diffs) > 0 {
			byDate[run.Date] = diffs
		}
		baseline = run.Snapshot
	}
	return byDate
}

// AgainstGroundTruth answers how a run differs from the answer set,
// regardless of run history.
func AgainstGroundTruth(groundTruth, current Snapshot) []TargetDiff {
	return Compare(groundTruth, current)
}

// GroundTruth builds the synthetic baseline snapshot from the answer set.
// Unknown search exposure is recorded as not exposed.
func GroundTruth(targets []models.Target) Snapshot {
	snap := make(Snapshot, len(targets))
	for _, t := range targets {
		snap[t.ID] = Entry{
			FoundExposed: t.AnswerSearchExposed.IsYes(),
			IsPDF:        t.AnswerPDFExposed,
			AnswerOnly:   true,
		}
	}
	return snap
}

// FromResults builds a snapshot from stored run results.
func FromResults(results []models.RunResult) Snapshot {
	snap := make(Snapshot, len(results))
	for _, r := range results {
		snap[r.TargetID] = FromOutcome(r.Outcome)
	}
	return snap
}

// FromOutcome converts a probe outcome into a snapshot entry.
func FromOutcome(o models.Outcome) Entry {
	return Entry{
		FoundExposed: o.FoundExposed,
		IsPDF:        o.IsPDF,
		HTTPStatus:   o.HTTPStatus,
		FinalURL:     o.FinalURL,
		ErrorMessage: o.ErrorMessage,
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
