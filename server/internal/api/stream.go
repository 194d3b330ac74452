package api

import (
	"github.com/facultyload/facultyload/pkg/types"
	"github.com/facultyload/facultyload/server/internal/store"
	"github.com/facultyload/facultyload/server/internal/workload"
)

// BuildStream assembles the WebSocket payload from the latest stored
// snapshot, narrowed to department when it is non-empty.
func BuildStream(st *store.Store, department string) StreamResponse {
	var s *store.Snapshot
	if e, ok := st.Latest(); ok {
		s = e.Snapshot
	}
	return StreamFor(s, department)
}

// StreamFor builds the payload for one snapshot. A nil snapshot yields an
// empty payload with no origin. Summaries cover the filtered records only.
func StreamFor(s *store.Snapshot, department string) StreamResponse {
	out := StreamResponse{Department: department}
	if s == nil {
		out.Records = []types.Record{}
		out.Overview = workload.Overview(nil)
		out.Departments = workload.Departments(nil)
		return out
	}
	recs := filterRecords(s.Records, department, "")
	out.SnapshotID = s.ID
	out.GeneratedAt = formatTime(s.GeneratedAt)
	out.Origin = s.Origin
	out.Records = recs
	out.Overview = workload.Overview(recs)
	out.Departments = workload.Departments(recs)
	return out
}
