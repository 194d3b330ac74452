package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/facultyload/facultyload/server/internal/config"
)

const rowsJSON = `[
  {"Faculty Name": "Dr. A", "Department": "CS", "S1_Subject_Name": "Networks", "S1_Teaching_Hours": 4},
  {"Faculty Name": "Dr. B", "Department": "CS", "S1_Subject_Name": "Compilers", "S1_Teaching_Hours": "3"}
]`

// testConfig returns a source config pointing at url with fast retries.
func testConfig(url string) config.SourceConfig {
	return config.SourceConfig{
		URL:     url,
		Timeout: 2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	}
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// --- FetchRows ---

func TestFetchRows_PlainArray(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != ActionWorkload {
			t.Errorf("action = %q, want workload", got)
		}
		w.Write([]byte(rowsJSON)) //nolint:errcheck
	})

	rows, err := New(testConfig(srv.URL)).FetchRows(context.Background())
	if err != nil {
		t.Fatalf("FetchRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["Faculty Name"] != "Dr. A" {
		t.Errorf("rows[0] faculty = %v", rows[0]["Faculty Name"])
	}
}

func TestFetchRows_DataEnvelope(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": ` + rowsJSON + `}`)) //nolint:errcheck
	})
	rows, err := New(testConfig(srv.URL)).FetchRows(context.Background())
	if err != nil || len(rows) != 2 {
		t.Fatalf("FetchRows = %d rows, %v; want 2, nil", len(rows), err)
	}
}

func TestFetchRows_Brotli(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != acceptEncoding {
			t.Errorf("Accept-Encoding = %q", r.Header.Get("Accept-Encoding"))
		}
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(rowsJSON)) //nolint:errcheck
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes()) //nolint:errcheck
	})
	rows, err := New(testConfig(srv.URL)).FetchRows(context.Background())
	if err != nil || len(rows) != 2 {
		t.Fatalf("FetchRows(br) = %d rows, %v; want 2, nil", len(rows), err)
	}
}

func TestFetchRows_Gzip(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(rowsJSON)) //nolint:errcheck
		zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes()) //nolint:errcheck
	})
	rows, err := New(testConfig(srv.URL)).FetchRows(context.Background())
	if err != nil || len(rows) != 2 {
		t.Fatalf("FetchRows(gzip) = %d rows, %v; want 2, nil", len(rows), err)
	}
}

func TestFetchRows_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"error object": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": "sheet not found"}`)) //nolint:errcheck
		},
		"empty body": func(w http.ResponseWriter, r *http.Request) {},
		"html page": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>login</html>`)) //nolint:errcheck
		},
		"broken json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"Faculty Name": `)) //nolint:errcheck
		},
		"not found": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, h)
			_, err := New(testConfig(srv.URL)).FetchRows(context.Background())
			if !errors.Is(err, ErrUpstream) {
				t.Fatalf("err = %v, want ErrUpstream", err)
			}
		})
	}
}

func TestFetchRows_NotConfigured(t *testing.T) {
	_, err := New(testConfig("")).FetchRows(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

// --- Retry ---

func TestFetchRows_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(rowsJSON)) //nolint:errcheck
	})
	rows, err := New(testConfig(srv.URL)).FetchRows(context.Background())
	if err != nil {
		t.Fatalf("FetchRows: %v", err)
	}
	if len(rows) != 2 || calls.Load() != 3 {
		t.Errorf("rows = %d after %d calls, want 2 after 3", len(rows), calls.Load())
	}
}

func TestFetchRows_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := New(testConfig(srv.URL)).FetchRows(context.Background())
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want *HTTPError 502", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchRows_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	New(testConfig(srv.URL)).FetchRows(context.Background()) //nolint:errcheck
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

// --- Auth ---

func TestFetch_AuthModes(t *testing.T) {
	t.Setenv("TEST_SHEET_TOKEN", "tok")
	t.Setenv("TEST_SHEET_KEY", "k3y")
	t.Setenv("TEST_SHEET_PASS", "pw")

	cases := []struct {
		name  string
		auth  config.SourceAuthConfig
		check func(r *http.Request) bool
	}{
		{"bearer", config.SourceAuthConfig{Mode: "bearer", TokenEnv: "TEST_SHEET_TOKEN"},
			func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer tok" }},
		{"apikey", config.SourceAuthConfig{Mode: "apikey", Header: "X-Sheet-Key", KeyEnv: "TEST_SHEET_KEY"},
			func(r *http.Request) bool { return r.Header.Get("X-Sheet-Key") == "k3y" }},
		{"basic", config.SourceAuthConfig{Mode: "basic", Username: "svc", PasswordEnv: "TEST_SHEET_PASS"},
			func(r *http.Request) bool { u, p, ok := r.BasicAuth(); return ok && u == "svc" && p == "pw" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
				if !tc.check(r) {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.Write([]byte(rowsJSON)) //nolint:errcheck
			})
			cfg := testConfig(srv.URL)
			cfg.Auth = tc.auth
			if _, err := New(cfg).FetchRows(context.Background()); err != nil {
				t.Fatalf("FetchRows: %v", err)
			}
		})
	}
}

// --- FetchInsights ---

func TestFetchInsights(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != ActionInsights {
			t.Errorf("action = %q, want insights", r.URL.Query().Get("action"))
		}
		w.Write([]byte(`{"summary": "CS is stretched", "recommendations": ["Hire a TA"]}`)) //nolint:errcheck
	})
	got, err := New(testConfig(srv.URL)).FetchInsights(context.Background())
	if err != nil {
		t.Fatalf("FetchInsights: %v", err)
	}
	if got.Summary != "CS is stretched" || len(got.Recommendations) != 1 {
		t.Errorf("insights = %+v", got)
	}
}

func TestFetchInsights_ErrorObject(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "quota"}`)) //nolint:errcheck
	})
	if _, err := New(testConfig(srv.URL)).FetchInsights(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestWithAction_KeepsExistingQuery(t *testing.T) {
	got, err := withAction("https://script.example.com/exec?key=abc", "workload")
	if err != nil {
		t.Fatalf("withAction: %v", err)
	}
	if got != "https://script.example.com/exec?action=workload&key=abc" {
		t.Errorf("withAction = %q", got)
	}
}
