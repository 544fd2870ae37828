package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"indexwatch/internal/checker"
	"indexwatch/internal/models"
	"indexwatch/internal/progress"
	"indexwatch/internal/storage/sqlite"
)

// stubProber reports every URL containing "exposed" as found.
type stubProber struct{}

func (stubProber) Probe(ctx context.Context, url string) models.Outcome {
	status := 200
	return models.Outcome{
		FoundExposed: strings.Contains(url, "exposed"),
		IsPDF:        strings.HasSuffix(url, ".pdf"),
		HTTPStatus:   &status,
		FinalURL:     &url,
	}
}

type testEnv struct {
	server *httptest.Server
	store  *sqlite.SQLiteStore
	hub    *progress.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(t.Context(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := progress.NewHub()
	svc := checker.NewService(store, stubProber{}, 2, time.UTC, hub)
	server := httptest.NewServer(NewRouter(store, svc, hub))
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	for _, body := range []string{
		`{"id":"t1","label":"one","url":"https://plain.example/a","answer_search_exposed":false}`,
		`{"id":"t2","label":"two","url":"https://exposed.example/b.pdf","answer_search_exposed":"Y","answer_pdf_exposed":true}`,
		`{"id":"t3","label":"three","url":"https://exposed.example/c","answer_search_exposed":true}`,
	} {
		resp := e.do(t, http.MethodPost, "/v1/targets", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", "").StatusCode)
}

func TestUpsertTarget(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v1/targets", `{"id":"t1","url":"HTTPS://Example.com:443/p#frag","answer_search_exposed":"Y","note":"first"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	got := decode[models.Target](t, resp)
	assert.Equal(t, "https://example.com/p", got.URL)
	assert.Equal(t, models.Yes, got.AnswerSearchExposed)

	resp = e.do(t, http.MethodPost, "/v1/targets", `{"id":"t1","url":"https://example.com/q","answer_search_exposed":null}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[models.Target](t, resp)
	assert.Equal(t, models.Unknown, got.AnswerSearchExposed)
	require.NotNil(t, got.Note)
	assert.Equal(t, "first", *got.Note)
}

func TestUpsertTargetRejects(t *testing.T) {
	e := newTestEnv(t)
	for _, body := range []string{
		`not json`,
		`{"url":"https://example.com"}`,
		`{"id":"t1","url":"example.com"}`,
		`{"id":"t1","url":"https://example.com","answer_search_exposed":"perhaps"}`,
	} {
		assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/v1/targets", body).StatusCode, body)
	}
}

func TestListTargetsInPriorityOrder(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	resp := e.do(t, http.MethodGet, "/v1/targets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Items []models.Target `json:"items"`
	}](t, resp)
	require.Len(t, body.Items, 3)
	assert.Equal(t, []string{"t2", "t3", "t1"}, []string{body.Items[0].ID, body.Items[1].ID, body.Items[2].ID})

	resp = e.do(t, http.MethodGet, "/v1/targets?bucket=yn", "")
	body = decode[struct {
		Items []models.Target `json:"items"`
	}](t, resp)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "t3", body.Items[0].ID)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/targets?bucket=ZZ", "").StatusCode)
}

func TestGetTargetAndNote(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/targets/nope", "").StatusCode)

	resp := e.do(t, http.MethodPatch, "/v1/targets/t1/note", `{"note":"looks stale"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.Target](t, resp)
	require.NotNil(t, got.Note)
	assert.Equal(t, "looks stale", *got.Note)

	resp = e.do(t, http.MethodPatch, "/v1/targets/t1/note", `{"note":"   "}`)
	got = decode[models.Target](t, resp)
	assert.Nil(t, got.Note)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPatch, "/v1/targets/nope/note", `{"note":"x"}`).StatusCode)
}

func TestRunDateAndDashboard(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	resp := e.do(t, http.MethodPost, "/v1/runs/2024-05-01", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[checker.RunSummary](t, resp)
	assert.Equal(t, 3, summary.CheckedCount)
	assert.Equal(t, 3, summary.TotalTargets)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/v1/runs/yesterday", "").StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/runs", "")
	runs := decode[struct {
		Items []models.Run `json:"items"`
	}](t, resp)
	require.Len(t, runs.Items, 1)
	assert.Equal(t, 3, runs.Items[0].ResultCount)

	resp = e.do(t, http.MethodGet, "/v1/runs/2024-05-01", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decode[struct {
		Results []models.RunResult `json:"results"`
	}](t, resp)
	assert.Len(t, run.Results, 3)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/runs/2023-01-01", "").StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/dashboard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dash))
	assert.JSONEq(t, `"2024-05-01"`, string(dash["run_date"]))
	// Every probe matched the answer set.
	assert.JSONEq(t, `[]`, string(dash["diffs_vs_ground_truth"]))

	resp = e.do(t, http.MethodGet, "/v1/changelog", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{}`, readAll(t, resp))
}

func TestCheckTarget(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	resp := e.do(t, http.MethodPost, "/v1/targets/t3/check", `{"run_date":"2024-05-02"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[models.RunResult](t, resp)
	assert.True(t, result.FoundExposed)
	assert.Equal(t, "t3", result.TargetID)

	run, err := e.store.GetRunByDate(t.Context(), "2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, 1, run.ResultCount)

	// Without a body the run for today is used.
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/v1/targets/t1/check", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/v1/targets/nope/check", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/v1/targets/t1/check", `{"run_date":"05/02/2024"}`).StatusCode)
}

func TestExport(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/v1/runs/2024-05-01", "").StatusCode)

	resp := e.do(t, http.MethodGet, "/v1/export?format=csv", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="indexwatch-2024-05-01.csv"`, resp.Header.Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(readAll(t, resp)), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "t2,"))

	resp = e.do(t, http.MethodGet, "/v1/export?run_date=2024-05-01", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/export?format=pdf", "").StatusCode)
}

func TestProgressWebsocket(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/v1/runs/progress"
	conn, _, err := websocket.DefaultDialer.DialContext(t.Context(), wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait until the handler has subscribed before starting the run.
	require.Eventually(t, func() bool { return e.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/v1/runs/2024-05-01", "").StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var last progress.Event
	for !last.Done {
		require.NoError(t, conn.ReadJSON(&last))
	}
	assert.Equal(t, progress.Event{RunDate: "2024-05-01", Completed: 3, Total: 3, Done: true}, last)
}

func TestProgressRejectsForeignOrigin(t *testing.T) {
	e := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/v1/runs/progress"
	header := http.Header{"Origin": []string{"https://elsewhere.example"}}
	_, resp, err := websocket.DefaultDialer.DialContext(t.Context(), wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}
