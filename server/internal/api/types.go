package api

import (
	"time"

	"github.com/facultyload/facultyload/pkg/types"
	"github.com/facultyload/facultyload/server/internal/security"
	"github.com/facultyload/facultyload/server/internal/workload"
)

// HealthResponse is the payload for GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the payload for GET /api/status.
type StatusResponse struct {
	SnapshotID      string               `json:"snapshot_id,omitempty"`
	GeneratedAt     string               `json:"generated_at,omitempty"` // RFC3339
	Origin          string               `json:"origin"`
	RecordCount     int                  `json:"record_count"`
	RejectedRows    int                  `json:"rejected_rows"`
	Error           string               `json:"error,omitempty"`
	SourceTLS       *security.CertStatus `json:"source_tls,omitempty"`
	StreamClients   int                  `json:"stream_clients"`
	FiringAlerts    int                  `json:"firing_alerts"`
	SnapshotsStored int                  `json:"snapshots_stored"`
}

// StreamResponse is the data of one WebSocket "snapshot" event.
type StreamResponse struct {
	SnapshotID  string                       `json:"snapshot_id,omitempty"`
	GeneratedAt string                       `json:"generated_at,omitempty"` // RFC3339
	Origin      string                       `json:"origin"`
	Department  string                       `json:"department,omitempty"`
	Records     []types.Record               `json:"records"`
	Overview    workload.OverviewStats       `json:"overview"`
	Departments []workload.DepartmentSummary `json:"departments"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
