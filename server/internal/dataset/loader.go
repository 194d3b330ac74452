package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facultyload/facultyload/pkg/types"
	"github.com/facultyload/facultyload/server/internal/alerts"
	"github.com/facultyload/facultyload/server/internal/metrics"
	"github.com/facultyload/facultyload/server/internal/source"
	"github.com/facultyload/facultyload/server/internal/store"
	"github.com/facultyload/facultyload/server/internal/workload"
)

// Fallback reasons recorded in Snapshot.Error.
var (
	ErrNoRows    = errors.New("upstream returned no rows")
	ErrNoRecords = errors.New("no valid records after normalization")
)

// Deps are the optional collaborators of a Loader. Nil fields are skipped.
type Deps struct {
	Store   *store.Store
	Alerts  *alerts.Engine
	Metrics *metrics.Registry
}

// Loader fetches raw rows, runs the pipeline and records the outcome.
// It is safe for concurrent use; the fetcher can be swapped while serving.
type Loader struct {
	mu      sync.RWMutex
	fetcher source.Fetcher
	strict  bool

	deps Deps
	now  func() time.Time
}

// New creates a Loader. In strict mode a single rejected row makes the whole
// upstream batch unusable and the demo records are served instead.
func New(f source.Fetcher, strict bool, deps Deps) *Loader {
	return &Loader{fetcher: f, strict: strict, deps: deps, now: time.Now}
}

// SetFetcher replaces the upstream client, e.g. after a config reload.
func (l *Loader) SetFetcher(f source.Fetcher) {
	l.mu.Lock()
	l.fetcher = f
	l.mu.Unlock()
}

// SetStrict switches between strict and lenient row handling.
func (l *Loader) SetStrict(strict bool) {
	l.mu.Lock()
	l.strict = strict
	l.mu.Unlock()
}

// Fetcher returns the current upstream client.
func (l *Loader) Fetcher() source.Fetcher {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fetcher
}

func (l *Loader) current() (source.Fetcher, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fetcher, l.strict
}

// Load runs one pipeline pass and returns its snapshot. It never fails:
// upstream errors, an empty dataset and (in strict mode) rejected rows all
// produce a demo snapshot whose Error explains the fallback.
func (l *Loader) Load(ctx context.Context) *store.Snapshot {
	f, strict := l.current()
	snap := &store.Snapshot{
		ID:          uuid.NewString(),
		GeneratedAt: l.now().UTC(),
	}

	upstreamFailed := false
	rows, err := f.FetchRows(ctx)
	switch {
	case err != nil:
		upstreamFailed = true
		slog.Warn("dataset: fetch failed, serving demo records", "endpoint", f.Endpoint(), "err", err)
		fallback(snap, err)
	case len(rows) == 0:
		slog.Warn("dataset: upstream returned no rows, serving demo records")
		fallback(snap, ErrNoRows)
	default:
		l.process(snap, rows, strict)
	}

	l.record(snap, upstreamFailed)
	return snap
}

func (l *Loader) process(snap *store.Snapshot, rows []types.RawRow, strict bool) {
	records, err := workload.Run(rows)
	snap.Rejected = countRejected(err)
	if err != nil {
		slog.Warn("dataset: rows rejected",
			"rejected", snap.Rejected,
			"rows", len(rows),
			"strict", strict,
			"err", err,
		)
	}

	switch {
	case err != nil && strict:
		fallback(snap, fmt.Errorf("strict mode: %d of %d rows rejected: %w", snap.Rejected, len(rows), err))
	case len(records) == 0:
		fallback(snap, ErrNoRecords)
	default:
		snap.Origin = store.OriginLive
		snap.Records = records
		if err != nil {
			snap.Error = err.Error()
		}
		slog.Debug("dataset: live snapshot", "id", snap.ID, "records", len(records))
	}
}

func (l *Loader) record(snap *store.Snapshot, upstreamFailed bool) {
	if m := l.deps.Metrics; m != nil {
		m.ObserveRun(snap.Origin, snap.Rejected, upstreamFailed, snap.GeneratedAt)
		m.SetRecords(snap.Records)
	}
	if a := l.deps.Alerts; a != nil && snap.Origin == store.OriginLive {
		a.Evaluate(snap.Records)
	}
	if st := l.deps.Store; st != nil {
		st.Put(snap)
	}
}

func fallback(snap *store.Snapshot, reason error) {
	snap.Origin = store.OriginDemo
	snap.Records = workload.DemoRecords()
	snap.Error = reason.Error()
}

// countRejected returns the number of rows rejected by workload.Normalize.
func countRejected(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

// Insights asks the upstream for its summary and recommendations.
func (l *Loader) Insights(ctx context.Context) (types.Insights, error) {
	f, _ := l.current()
	return f.FetchInsights(ctx)
}
