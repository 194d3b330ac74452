package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/facultyload/facultyload/pkg/types"
)

// scrape serves the registry and parses the response back into families.
func scrape(t *testing.T, r *Registry) map[string]*dto.MetricFamily {
	t.Helper()
	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	return mfs
}

func valueWithLabel(mf *dto.MetricFamily, name, value string) (float64, bool) {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				if m.Counter != nil {
					return m.Counter.GetValue(), true
				}
				return m.Gauge.GetValue(), true
			}
		}
	}
	return 0, false
}

func TestRegistry_ObserveRun(t *testing.T) {
	r := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.ObserveRun("live", 2, false, now)
	r.ObserveRun("demo", 0, true, now)
	r.ObserveRun("demo", 0, true, now)

	mfs := scrape(t, r)
	if v, _ := valueWithLabel(mfs[namePipelineRuns], "origin", "demo"); v != 2 {
		t.Errorf("demo runs = %v, want 2", v)
	}
	if v := mfs[nameUpstreamFailures].GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("upstream failures = %v, want 2", v)
	}
	if v := mfs[nameRejectedRows].GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("rejected rows = %v, want 2", v)
	}
	if v := mfs[nameLastRun].GetMetric()[0].GetGauge().GetValue(); v != float64(now.Unix()) {
		t.Errorf("last run = %v, want %d", v, now.Unix())
	}
}

func TestRegistry_SetRecordsResetsStatuses(t *testing.T) {
	r := New()
	r.SetRecords([]types.Record{
		{Status: types.StatusOverloaded},
		{Status: types.StatusOverloaded},
		{Status: types.StatusBalanced},
	})
	r.SetRecords([]types.Record{{Status: types.StatusBalanced}})

	mfs := scrape(t, r)
	if v, ok := valueWithLabel(mfs[nameRecords], "status", "Overloaded"); !ok || v != 0 {
		t.Errorf("overloaded = %v (present %v), want 0", v, ok)
	}
	if v, _ := valueWithLabel(mfs[nameRecords], "status", "Balanced"); v != 1 {
		t.Errorf("balanced = %v, want 1", v)
	}
}

func TestRegistry_RequestsAndClients(t *testing.T) {
	r := New()
	r.ObserveRequest("/api/workload", 200)
	r.ObserveRequest("/api/workload", 200)
	r.ObserveRequest("/api/workload", 405)
	r.SetClientsFunc(func() int { return 3 })

	mfs := scrape(t, r)
	var ok200 float64
	for _, m := range mfs[nameHTTPRequests].GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["route"] == "/api/workload" && labels["code"] == "200" {
			ok200 = m.GetCounter().GetValue()
		}
	}
	if ok200 != 2 {
		t.Errorf("200 responses = %v, want 2", ok200)
	}
	if v := mfs[nameStreamClients].GetMetric()[0].GetGauge().GetValue(); v != 3 {
		t.Errorf("stream clients = %v, want 3", v)
	}
}
