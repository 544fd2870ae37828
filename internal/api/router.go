package api

import (
	"net/http"

	"indexwatch/internal/checker"
	"indexwatch/internal/progress"
	"indexwatch/internal/storage"
)

// NewRouter creates a new http.ServeMux and registers the API handlers.
func NewRouter(store storage.Storer, service *checker.Service, hub *progress.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewHandlers(store, service, hub)

	mux.HandleFunc("POST /v1/targets", h.UpsertTarget)
	mux.HandleFunc("GET /v1/targets", h.ListTargets)
	mux.HandleFunc("GET /v1/targets/{target_id}", h.GetTarget)
	mux.HandleFunc("PATCH /v1/targets/{target_id}/note", h.UpdateTargetNote)
	mux.HandleFunc("POST /v1/targets/{target_id}/check", h.CheckTarget)

	mux.HandleFunc("GET /v1/runs", h.ListRuns)
	mux.HandleFunc("GET /v1/runs/progress", h.Progress)
	mux.HandleFunc("GET /v1/runs/{run_date}", h.GetRun)
	mux.HandleFunc("POST /v1/runs/today", h.RunToday)
	mux.HandleFunc("POST /v1/runs/{run_date}", h.RunDate)

	mux.HandleFunc("GET /v1/dashboard", h.Dashboard)
	mux.HandleFunc("GET /v1/changelog", h.Changelog)
	mux.HandleFunc("GET /v1/export", h.Export)
	mux.HandleFunc("GET /healthz", h.Healthz)

	return mux
}
