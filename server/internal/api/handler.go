package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/obsidianstack/healthboard/pkg/history"
	"github.com/obsidianstack/healthboard/pkg/types"
	"github.com/obsidianstack/healthboard/server/internal/alerts"
	"github.com/obsidianstack/healthboard/server/internal/store"
)

// AlertLister exposes the alerts to list; implemented by alerts.Engine.
type AlertLister interface {
	Active() []*alerts.Alert
}

// Option configures the API.
type Option func(*Handler)

// WithAlerts serves the engine's alerts on /api/v1/alerts.
func WithAlerts(a AlertLister) Option {
	return func(h *Handler) { h.alerts = a }
}

// WithHistory serves chart data from h.
func WithHistory(r history.Reader) Option {
	return func(h *Handler) { h.history = r }
}

// WithReceiver mounts rec on POST /api/v1/reports. Authentication must be
// applied by the caller.
func WithReceiver(rec http.Handler) Option {
	return func(h *Handler) { h.receiver = rec }
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store    *store.Store
	alerts   AlertLister
	history  history.Reader
	receiver http.Handler
	router   chi.Router
	now      func() time.Time
}

// New creates a Handler wired to the given report store and registers all routes.
func New(st *store.Store, opts ...Option) *Handler {
	h := &Handler{store: st, now: time.Now}
	for _, o := range opts {
		o(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/alerts", h.listAlerts)
		r.Get("/snapshot", h.snapshot)
		if h.receiver != nil {
			r.Method(http.MethodPost, "/reports", h.receiver)
		}
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.listProjects)
			r.Get("/{project}", h.getProject)
			r.Get("/{project}/metrics/{metric}", h.getMetric)
			r.Get("/{project}/metrics/{metric}/history", h.metricHistory)
		})
	})
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: the worst status and per-status counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	entries := h.store.List()
	resp := HealthResponse{
		Status:       "unknown",
		ProjectCount: len(entries),
		Counts:       zeroCounts(),
	}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}

	var worst types.Status
	for _, e := range entries {
		for _, m := range e.Report.Metrics {
			resp.MetricCount++
			resp.Counts[m.Status]++
			if worst == "" {
				worst = m.Status
			} else {
				worst = types.Worst(worst, m.Status)
			}
		}
	}
	if worst != "" {
		resp.Status = string(worst)
	}
	jsonResp(w, http.StatusOK, resp)
}

// listProjects returns GET /api/v1/projects.
func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	entries := h.store.List()
	out := make([]ProjectSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSummary(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// getProject returns GET /api/v1/projects/{project}.
func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	e, ok := h.live(chi.URLParam(r, "project"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "project not found")
		return
	}
	jsonResp(w, http.StatusOK, toProjectResponse(e))
}

// getMetric returns GET /api/v1/projects/{project}/metrics/{metric}.
func (h *Handler) getMetric(w http.ResponseWriter, r *http.Request) {
	e, ok := h.live(chi.URLParam(r, "project"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "project not found")
		return
	}
	m := e.Report.Metric(chi.URLParam(r, "metric"))
	if m == nil {
		jsonErr(w, http.StatusNotFound, "metric not found")
		return
	}
	jsonResp(w, http.StatusOK, toMetricResponse(*m))
}

// metricHistory returns the recorded values of one metric, at most ?limit
// (default history.DefaultRecent), with the chart range of the latest report.
func (h *Handler) metricHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		jsonErr(w, http.StatusNotFound, "history is not configured")
		return
	}
	project, metricID := chi.URLParam(r, "project"), chi.URLParam(r, "metric")

	limit := history.DefaultRecent
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.history.Entries(r.Context(), store.HistoryKey(project, metricID))
	if err != nil {
		slog.Error("api: read history", "project", project, "metric", metricID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	resp := HistoryResponse{
		Project:  project,
		MetricID: metricID,
		Points:   make([]HistoryPoint, 0, len(entries)),
		YAxisMax: 100,
	}
	for _, en := range entries {
		p := HistoryPoint{Value: en.Value, Status: en.Status}
		if en.Timestamped() {
			p.Timestamp = en.Timestamp.UTC().Format(time.RFC3339)
		}
		resp.Points = append(resp.Points, p)
	}
	if e, ok := h.live(project); ok {
		if m := e.Report.Metric(metricID); m != nil {
			resp.YAxisMin, resp.YAxisMax = m.YAxisMin, m.YAxisMax
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listAlerts returns GET /api/v1/alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	out := []*alerts.Alert{}
	if h.alerts != nil {
		out = append(out, h.alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

// snapshot returns GET /api/v1/snapshot, the full state of all live projects.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.now()))
}

// BuildSnapshot collects all live projects; the WebSocket hub sends the same
// payload.
func BuildSnapshot(st *store.Store, now time.Time) SnapshotResponse {
	entries := st.List()
	projects := make([]ProjectResponse, 0, len(entries))
	for _, e := range entries {
		projects = append(projects, toProjectResponse(e))
	}
	return SnapshotResponse{
		Projects:    projects,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

// live returns the project's entry unless it is unknown or past the TTL.
func (h *Handler) live(project string) (*store.Entry, bool) {
	for _, e := range h.store.List() {
		if e.Report.Project == project {
			return e, true
		}
	}
	return nil, false
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func zeroCounts() map[types.Status]int {
	out := make(map[types.Status]int, len(types.AllStatuses))
	for _, s := range types.AllStatuses {
		out[s] = 0
	}
	return out
}

func toSummary(e *store.Entry) ProjectSummary {
	rep := e.Report
	counts := zeroCounts()
	var worst types.Status
	for _, m := range rep.Metrics {
		counts[m.Status]++
		if m.Meta {
			continue
		}
		if worst == "" {
			worst = m.Status
		} else {
			worst = types.Worst(worst, m.Status)
		}
	}
	return ProjectSummary{
		Project:     rep.Project,
		PassID:      rep.PassID,
		Status:      worst,
		Counts:      counts,
		GeneratedAt: rep.GeneratedAt.UTC().Format(time.RFC3339),
		LastSeen:    e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toProjectResponse(e *store.Entry) ProjectResponse {
	metrics := make([]MetricResponse, 0, len(e.Report.Metrics))
	for _, m := range e.Report.Metrics {
		metrics = append(metrics, toMetricResponse(m))
	}
	return ProjectResponse{ProjectSummary: toSummary(e), Metrics: metrics}
}

func toMetricResponse(m types.MetricReport) MetricResponse {
	return MetricResponse{MetricReport: m, Diagnostics: computeDiagnostics(m)}
}
