package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/facultyload/facultyload/pkg/types"
)

// Metric names.
const (
	namePipelineRuns     = "facultyload_pipeline_runs_total"
	nameUpstreamFailures = "facultyload_upstream_failures_total"
	nameRejectedRows     = "facultyload_rejected_rows_total"
	nameHTTPRequests     = "facultyload_http_requests_total"
	nameRecords          = "facultyload_records"
	nameLastRun          = "facultyload_last_run_timestamp_seconds"
	nameStreamClients    = "facultyload_stream_clients"
)

type requestKey struct {
	route string
	code  int
}

// Registry holds the server's counters and gauges. All methods are safe for
// concurrent use.
type Registry struct {
	mu               sync.Mutex
	runs             map[string]float64 // by origin
	upstreamFailures float64
	rejectedRows     float64
	requests         map[requestKey]float64
	records          map[types.Status]float64
	lastRun          time.Time
	clients          func() int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		runs:     make(map[string]float64),
		requests: make(map[requestKey]float64),
		records:  make(map[types.Status]float64),
	}
}

// ObserveRun records one pipeline run. origin is "live" or "demo";
// upstreamFailed marks runs whose fetch failed.
func (r *Registry) ObserveRun(origin string, rejected int, upstreamFailed bool, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[origin]++
	r.rejectedRows += float64(rejected)
	if upstreamFailed {
		r.upstreamFailures++
	}
	r.lastRun = at
}

// SetRecords replaces the records-by-status gauge with the counts of recs.
func (r *Registry) SetRecords(recs []types.Record) {
	counts := make(map[types.Status]float64, len(types.Statuses))
	for _, s := range types.Statuses {
		counts[s] = 0
	}
	for _, rec := range recs {
		counts[rec.Status]++
	}
	r.mu.Lock()
	r.records = counts
	r.mu.Unlock()
}

// ObserveRequest counts one HTTP response.
func (r *Registry) ObserveRequest(route string, code int) {
	r.mu.Lock()
	r.requests[requestKey{route: route, code: code}]++
	r.mu.Unlock()
}

// SetClientsFunc registers a callback reporting connected stream clients.
func (r *Registry) SetClientsFunc(f func() int) {
	r.mu.Lock()
	r.clients = f
	r.mu.Unlock()
}

// Gather snapshots every metric as client_model families, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*dto.MetricFamily

	runs := family(namePipelineRuns, "Pipeline runs by dataset origin.", dto.MetricType_COUNTER)
	for _, origin := range sortedKeys(r.runs) {
		runs.Metric = append(runs.Metric, counter(r.runs[origin], "origin", origin))
	}
	out = append(out, runs)

	fails := family(nameUpstreamFailures, "Pipeline runs whose upstream fetch failed.", dto.MetricType_COUNTER)
	fails.Metric = append(fails.Metric, counter(r.upstreamFailures))
	out = append(out, fails)

	rejected := family(nameRejectedRows, "Rows rejected because an hours value could not be read.", dto.MetricType_COUNTER)
	rejected.Metric = append(rejected.Metric, counter(r.rejectedRows))
	out = append(out, rejected)

	reqs := family(nameHTTPRequests, "HTTP responses by route and status code.", dto.MetricType_COUNTER)
	keys := make([]requestKey, 0, len(r.requests))
	for k := range r.requests {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		return keys[i].code < keys[j].code
	})
	for _, k := range keys {
		reqs.Metric = append(reqs.Metric, counter(r.requests[k], "route", k.route, "code", strconv.Itoa(k.code)))
	}
	out = append(out, reqs)

	recs := family(nameRecords, "Records in the latest dataset by status.", dto.MetricType_GAUGE)
	for _, s := range types.Statuses {
		recs.Metric = append(recs.Metric, gauge(r.records[s], "status", string(s)))
	}
	out = append(out, recs)

	if !r.lastRun.IsZero() {
		last := family(nameLastRun, "Unix time of the latest pipeline run.", dto.MetricType_GAUGE)
		last.Metric = append(last.Metric, gauge(float64(r.lastRun.UnixNano())/1e9))
		out = append(out, last)
	}

	if r.clients != nil {
		cl := family(nameStreamClients, "Connected WebSocket stream clients.", dto.MetricType_GAUGE)
		cl.Metric = append(cl.Metric, gauge(float64(r.clients())))
		out = append(out, cl)
	}

	// The text format rejects families without samples.
	nonEmpty := out[:0]
	for _, mf := range out {
		if len(mf.Metric) > 0 {
			nonEmpty = append(nonEmpty, mf)
		}
	}
	sort.Slice(nonEmpty, func(i, j int) bool { return nonEmpty[i].GetName() < nonEmpty[j].GetName() })
	return nonEmpty
}

// Handler serves the registry in the exposition format negotiated from the
// request's Accept header (text format by default).
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		format := expfmt.Negotiate(req.Header)
		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range r.Gather() {
			if err := enc.Encode(mf); err != nil {
				slog.Error("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
		if closer, ok := enc.(expfmt.Closer); ok {
			closer.Close() //nolint:errcheck
		}
	})
}

func family(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: typ.Enum(),
	}
}

func counter(v float64, labels ...string) *dto.Metric {
	return &dto.Metric{Label: labelPairs(labels), Counter: &dto.Counter{Value: proto.Float64(v)}}
}

func gauge(v float64, labels ...string) *dto.Metric {
	return &dto.Metric{Label: labelPairs(labels), Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

// labelPairs turns name, value, name, value... into label pairs.
func labelPairs(kv []string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &dto.LabelPair{Name: proto.String(kv[i]), Value: proto.String(kv[i+1])})
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
