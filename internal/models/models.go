package models

import "time"

// Target is one monitored URL together with its answer-set flags.
type Target struct {
	ID                  string    `json:"id"`
	Label               string    `json:"label"`
	URL                 string    `json:"url"`
	AnswerSearchExposed Tristate  `json:"answer_search_exposed"`
	AnswerPDFExposed    bool      `json:"answer_pdf_exposed"`
	Note                *string   `json:"note"`
	CreatedAt           time.Time `json:"created_at"`
}

// RankKey exposes the fields the priority orderer needs.
func (t Target) RankKey() (string, Tristate, bool) {
	return t.ID, t.AnswerSearchExposed, t.AnswerPDFExposed
}

// ProbeTarget is the minimal input of a batch: an id and the URL to fetch.
type ProbeTarget struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Run is an observation batch keyed by its calendar date (YYYY-MM-DD).
type Run struct {
	ID          string    `json:"id"`
	RunDate     string    `json:"run_date"`
	CreatedAt   time.Time `json:"created_at"`
	ResultCount int       `json:"result_count"`
}

// Outcome is what a single probe observed. Pointers are nil when the
// value was never obtained.
type Outcome struct {
	FoundExposed bool    `json:"found_exposed"`
	IsPDF        bool    `json:"is_pdf"`
	HTTPStatus   *int    `json:"http_status"`
	FinalURL     *string `json:"final_url"`
	ErrorMessage *string `json:"error_message"`
}

// RunResult stores the outcome of probing one Target within one Run.
// There is at most one RunResult per (RunID, TargetID).
type RunResult struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	TargetID  string    `json:"target_id"`
	CheckedAt time.Time `json:"checked_at"`
	Outcome
}
