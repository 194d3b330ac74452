package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/facultyload/facultyload/pkg/types"
	"github.com/facultyload/facultyload/server/internal/alerts"
	"github.com/facultyload/facultyload/server/internal/dataset"
	"github.com/facultyload/facultyload/server/internal/security"
	"github.com/facultyload/facultyload/server/internal/store"
	"github.com/facultyload/facultyload/server/internal/workload"
)

// Options wires the Handler to its collaborators. Loader and Store are
// required; the rest may be nil.
type Options struct {
	Loader *dataset.Loader
	Store  *store.Store
	Alerts *alerts.Engine
	Certs  *security.Tracker

	// Clients reports connected WebSocket clients.
	Clients func() int

	// LocalInsights enables rule-based insights when the upstream has none.
	LocalInsights bool
}

// Handler is the HTTP handler for all /api/* endpoints.
type Handler struct {
	opts Options
	mux  *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(opts Options) http.Handler {
	h := &Handler{opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/health", h.health)
	h.mux.HandleFunc("/api/workload", h.workload)
	h.mux.HandleFunc("/api/workload.csv", h.workloadCSV)
	h.mux.HandleFunc("/api/insights", h.insights)
	h.mux.HandleFunc("/api/overview", h.overview)
	h.mux.HandleFunc("/api/departments", h.departments)
	h.mux.HandleFunc("/api/faculty", h.faculty)
	h.mux.HandleFunc("/api/alerts", h.alerts)
	h.mux.HandleFunc("/api/status", h.status)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/health. It never touches the upstream.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// workload returns GET /api/workload: the classified records of a fresh
// pipeline run, or of the latest stored snapshot with ?cached=1.
func (h *Handler) workload(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	recs, ok := h.filteredRecords(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, recs)
}

// workloadCSV returns GET /api/workload.csv: the same records as a CSV report.
func (h *Handler) workloadCSV(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	recs, ok := h.filteredRecords(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="faculty-workload.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := writeCSV(w, recs); err != nil {
		slog.Warn("api: csv write failed", "err", err)
	}
}

// insights returns GET /api/insights.
func (h *Handler) insights(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	ins, err := h.opts.Loader.Insights(r.Context())
	if err == nil {
		if ins.Recommendations == nil {
			ins.Recommendations = []string{}
		}
		jsonResp(w, http.StatusOK, ins)
		return
	}
	slog.Warn("api: upstream insights unavailable", "err", err)

	if h.opts.LocalInsights {
		if e, ok := h.opts.Store.LatestLive(); ok {
			jsonResp(w, http.StatusOK, localInsights(e.Snapshot.Records))
			return
		}
	}
	jsonResp(w, http.StatusOK, types.NoInsights())
}

// overview returns GET /api/overview.
func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	snap := h.snapshot(r.Context(), true)
	jsonResp(w, http.StatusOK, workload.Overview(snap.Records))
}

// departments returns GET /api/departments.
func (h *Handler) departments(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	snap := h.snapshot(r.Context(), true)
	jsonResp(w, http.StatusOK, workload.Departments(snap.Records))
}

// faculty returns GET /api/faculty, optionally filtered by ?department=.
func (h *Handler) faculty(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	snap := h.snapshot(r.Context(), true)
	recs := snap.Records
	if dept := strings.TrimSpace(r.URL.Query().Get("department")); dept != "" {
		recs = filterRecords(recs, dept, "")
	}
	jsonResp(w, http.StatusOK, workload.Faculty(recs))
}

// alerts returns GET /api/alerts: firing and recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if h.opts.Alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.opts.Alerts.Active())
}

// status returns GET /api/status: metadata of the latest snapshot.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	resp := StatusResponse{SnapshotsStored: h.opts.Store.Count()}
	if e, ok := h.opts.Store.Latest(); ok {
		s := e.Snapshot
		resp.SnapshotID = s.ID
		resp.GeneratedAt = formatTime(s.GeneratedAt)
		resp.Origin = s.Origin
		resp.RecordCount = len(s.Records)
		resp.RejectedRows = s.Rejected
		resp.Error = s.Error
	}
	if h.opts.Certs != nil {
		resp.SourceTLS = h.opts.Certs.Latest()
	}
	if h.opts.Clients != nil {
		resp.StreamClients = h.opts.Clients()
	}
	if h.opts.Alerts != nil {
		resp.FiringAlerts = h.opts.Alerts.FiringCount()
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

// snapshot returns the latest stored snapshot when cached is true and one
// is within the TTL, otherwise runs the pipeline.
func (h *Handler) snapshot(ctx context.Context, cached bool) *store.Snapshot {
	if cached {
		if e, ok := h.opts.Store.LatestLive(); ok {
			return e.Snapshot
		}
	}
	return h.opts.Loader.Load(ctx)
}

// filteredRecords applies ?cached, ?department and ?status. It writes a 400
// and returns false for an unknown status.
func (h *Handler) filteredRecords(w http.ResponseWriter, r *http.Request) ([]types.Record, bool) {
	q := r.URL.Query()
	var status types.Status
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		var ok bool
		if status, ok = parseStatus(s); !ok {
			jsonErr(w, http.StatusBadRequest, "unknown status: want Overloaded|Balanced|Underutilized")
			return nil, false
		}
	}
	snap := h.snapshot(r.Context(), isTrue(q.Get("cached")))
	return filterRecords(snap.Records, strings.TrimSpace(q.Get("department")), status), true
}

// filterRecords keeps records matching dept and status; empty values match all.
// Records are never re-classified, so group values stay those of the full set.
func filterRecords(in []types.Record, dept string, status types.Status) []types.Record {
	out := make([]types.Record, 0, len(in))
	for _, rec := range in {
		if dept != "" && !strings.EqualFold(rec.Department, dept) {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func parseStatus(s string) (types.Status, bool) {
	for _, st := range types.Statuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

func isTrue(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
