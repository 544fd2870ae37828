package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"indexwatch/internal/checker"
	"indexwatch/internal/models"
	"indexwatch/internal/priority"
	"indexwatch/internal/progress"
	"indexwatch/internal/report"
	"indexwatch/internal/storage"
	"indexwatch/internal/urlutil"
)

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	store    storage.Storer
	service  *checker.Service
	reporter *report.Reporter
	hub      *progress.Hub
}

// NewHandlers creates a new Handlers struct. A nil hub gets a private one.
func NewHandlers(store storage.Storer, service *checker.Service, hub *progress.Hub) *Handlers {
	if hub == nil {
		hub = progress.NewHub()
	}
	return &Handlers{
		store:    store,
		service:  service,
		reporter: report.New(store),
		hub:      hub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, checker.ErrInvalidRunDate), errors.Is(err, urlutil.ErrInvalidURL):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, checker.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("%s error: %v", op, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeOptional decodes a JSON body into v. An empty body leaves v as is.
func decodeOptional(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// UpsertTarget creates or replaces a target's answer-set entry. The stored
// note is kept unless the request carries one.
func (h *Handlers) UpsertTarget(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		ID                  string          `json:"id"`
		Label               string          `json:"label"`
		URL                 string          `json:"url"`
		AnswerSearchExposed models.Tristate `json:"answer_search_exposed"`
		AnswerPDFExposed    bool            `json:"answer_pdf_exposed"`
		Note                *string         `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	reqBody.ID = strings.TrimSpace(reqBody.ID)
	if reqBody.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	normalized, err := urlutil.Normalize(reqBody.URL)
	if err != nil {
		writeError(w, "upsert target", err)
		return
	}

	statusCode := http.StatusOK
	if _, err := h.store.GetTargetByID(r.Context(), reqBody.ID); errors.Is(err, storage.ErrNotFound) {
		statusCode = http.StatusCreated
	} else if err != nil {
		writeError(w, "get target", err)
		return
	}

	target := &models.Target{
		ID:                  reqBody.ID,
		Label:               reqBody.Label,
		URL:                 normalized,
		AnswerSearchExposed: reqBody.AnswerSearchExposed,
		AnswerPDFExposed:    reqBody.AnswerPDFExposed,
		Note:                reqBody.Note,
	}
	if err := h.store.UpsertTarget(r.Context(), target); err != nil {
		writeError(w, "upsert target", err)
		return
	}
	stored, err := h.store.GetTargetByID(r.Context(), target.ID)
	if err != nil {
		writeError(w, "get target", err)
		return
	}
	writeJSON(w, statusCode, stored)
}

// ListTargets lists targets in priority order, optionally filtered by
// bucket (YY, YN, NY, NN).
func (h *Handlers) ListTargets(w http.ResponseWriter, r *http.Request) {
	bucket := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("bucket")))
	switch bucket {
	case "", "YY", "YN", "NY", "NN":
	default:
		http.Error(w, "bucket must be one of YY, YN, NY, NN", http.StatusBadRequest)
		return
	}

	targets, err := h.store.GetAllTargets(r.Context())
	if err != nil {
		writeError(w, "list targets", err)
		return
	}
	items := make([]models.Target, 0, len(targets))
	for _, t := range priority.Sorted(targets) {
		if bucket == "" || priority.Bucket(priority.ScoreOf(t)) == bucket {
			items = append(items, t)
		}
	}

	resp := struct {
		Items []models.Target `json:"items"`
	}{Items: items}
	writeJSON(w, http.StatusOK, resp)
}

// GetTarget returns one target.
func (h *Handlers) GetTarget(w http.ResponseWriter, r *http.Request) {
	target, err := h.store.GetTargetByID(r.Context(), r.PathValue("target_id"))
	if err != nil {
		writeError(w, "get target", err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// UpdateTargetNote sets or clears a target's note. A blank note clears it.
func (h *Handlers) UpdateTargetNote(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		Note *string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	note := reqBody.Note
	if note != nil && strings.TrimSpace(*note) == "" {
		note = nil
	}

	id := r.PathValue("target_id")
	if err := h.store.UpdateTargetNote(r.Context(), id, note); err != nil {
		writeError(w, "update note", err)
		return
	}
	target, err := h.store.GetTargetByID(r.Context(), id)
	if err != nil {
		writeError(w, "get target", err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// CheckTarget re-probes one target and stores the result in the run for
// run_date, today by default.
func (h *Handlers) CheckTarget(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		RunDate string `json:"run_date"`
	}
	if err := decodeOptional(r, &reqBody); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if reqBody.RunDate == "" {
		reqBody.RunDate = h.service.Today()
	}

	result, err := h.service.CheckTarget(r.Context(), r.PathValue("target_id"), reqBody.RunDate)
	if err != nil {
		writeError(w, "check target", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListRuns lists all runs by ascending date.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}
	resp := struct {
		Items []models.Run `json:"items"`
	}{Items: runs}
	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns a run with its stored results.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("run_date")
	if err := checker.ValidateRunDate(date); err != nil {
		writeError(w, "get run", err)
		return
	}
	run, err := h.store.GetRunByDate(r.Context(), date)
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	results, err := h.store.ListRunResults(r.Context(), run.ID)
	if err != nil {
		writeError(w, "list run results", err)
		return
	}
	if results == nil {
		results = []models.RunResult{}
	}
	resp := struct {
		Run     *models.Run        `json:"run"`
		Results []models.RunResult `json:"results"`
	}{Run: run, Results: results}
	writeJSON(w, http.StatusOK, resp)
}

// RunToday runs the batch for today's date.
func (h *Handlers) RunToday(w http.ResponseWriter, r *http.Request) {
	h.runBatch(w, r, h.service.Today())
}

// RunDate runs the batch for an explicit date.
func (h *Handlers) RunDate(w http.ResponseWriter, r *http.Request) {
	h.runBatch(w, r, r.PathValue("run_date"))
}

// runBatch blocks until the batch finishes. A client that disconnects does
// not cancel the probes already scheduled.
func (h *Handlers) runBatch(w http.ResponseWriter, r *http.Request, date string) {
	summary, err := h.service.RunDate(context.WithoutCancel(r.Context()), date)
	if err != nil {
		writeError(w, "run batch", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Dashboard returns KPIs, the priority-ordered table and the diffs for the
// selected run.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.reporter.Dashboard(r.Context(), r.URL.Query().Get("run_date"))
	if err != nil {
		writeError(w, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Changelog returns per-date changes across all runs.
func (h *Handlers) Changelog(w http.ResponseWriter, r *http.Request) {
	changes, err := h.reporter.Changelog(r.Context())
	if err != nil {
		writeError(w, "changelog", err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// Export downloads the result table of a run as xlsx (default) or csv.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		http.Error(w, "format must be xlsx or csv", http.StatusBadRequest)
		return
	}

	d, err := h.reporter.Dashboard(r.Context(), q.Get("run_date"))
	if err != nil {
		writeError(w, "export", err)
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = report.WriteXLSX(&buf, d)
	} else {
		err = report.WriteCSV(&buf, d)
	}
	if err != nil {
		writeError(w, "export", err)
		return
	}

	name := "indexwatch"
	if d.RunDate != "" {
		name += "-" + d.RunDate
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("error writing export: %v", err)
	}
}

// Healthz is a simple health check endpoint.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
