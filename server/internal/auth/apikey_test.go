package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// passHandler answers 200 "ok".
var passHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok")) //nolint:errcheck
})

func call(t *testing.T, h http.Handler, method, path, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAPIKey_ModeNone_PassesThrough(t *testing.T) {
	h := APIKey("none", "x-api-key", "secret")(passHandler)
	if rr := call(t, h, http.MethodGet, "/api/workload", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKey_EmptyKey_PassesThrough(t *testing.T) {
	// key="" means auth is not configured, allow all.
	h := APIKey("apikey", "x-api-key", "")(passHandler)
	if rr := call(t, h, http.MethodGet, "/api/workload", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKey_ValidKey(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(passHandler)
	rr := call(t, h, http.MethodGet, "/api/workload", "x-api-key", "secret")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("got %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
}

func TestAPIKey_MissingKey(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(passHandler)
	if rr := call(t, h, http.MethodGet, "/api/workload", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
}

func TestAPIKey_WrongKey(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(passHandler)
	if rr := call(t, h, http.MethodGet, "/api/workload", "x-api-key", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
}

func TestAPIKey_CustomHeader(t *testing.T) {
	h := APIKey("apikey", "authorization-token", "tok")(passHandler)
	if rr := call(t, h, http.MethodGet, "/api/workload", "x-api-key", "tok"); rr.Code != http.StatusUnauthorized {
		t.Errorf("key in wrong header: got %d, want 401", rr.Code)
	}
	if rr := call(t, h, http.MethodGet, "/api/workload", "authorization-token", "tok"); rr.Code != http.StatusOK {
		t.Errorf("key in custom header: got %d, want 200", rr.Code)
	}
}

func TestAPIKey_ExemptPathAndPreflight(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret", "/api/health")(passHandler)
	if rr := call(t, h, http.MethodGet, "/api/health", "", ""); rr.Code != http.StatusOK {
		t.Errorf("exempt path: got %d, want 200", rr.Code)
	}
	if rr := call(t, h, http.MethodOptions, "/api/workload", "", ""); rr.Code != http.StatusOK {
		t.Errorf("preflight: got %d, want 200", rr.Code)
	}
}

func upgradeRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	return req
}

func TestAPIKey_WebSocketQueryKey(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "secret")(passHandler)

	cases := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"upgrade with key", upgradeRequest("/ws/stream?api_key=secret"), http.StatusOK},
		{"upgrade with wrong key", upgradeRequest("/ws/stream?api_key=nope"), http.StatusUnauthorized},
		{"upgrade without key", upgradeRequest("/ws/stream"), http.StatusUnauthorized},
		{"plain request with query key", httptest.NewRequest(http.MethodGet, "/api/workload?api_key=secret", nil), http.StatusUnauthorized},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, c.req)
		if rr.Code != c.want {
			t.Errorf("%s: status %d, want %d", c.name, rr.Code, c.want)
		}
	}
}
