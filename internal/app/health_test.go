package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// doJSON sends a request through the full handler chain and decodes the
// JSON response body.
func doJSON(t *testing.T, server *HTTPServer, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch value := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(value)
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	payload := map[string]any{}
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
		}
	}
	return rr, payload
}

func expectCode(t *testing.T, rr *httptest.ResponseRecorder, payload map[string]any, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
	if code != "" && payload["code"] != code {
		t.Fatalf("expected code %s, got %v", code, payload["code"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore(), Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/health", "", nil)

	expectCode(t, rr, payload, http.StatusOK, "")
	if payload["ok"] != true {
		t.Errorf("expected ok=true, got %v", payload["ok"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected X-Request-ID header")
	}
}

func TestHealthEndpointEchoesRequestID(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore(), Deps{}), "*")
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id req-42, got %q", got)
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	svc := newTestService(t, newFakeStore(), Deps{
		Checks: map[string]Pinger{"redis": pingerFunc(func(context.Context) error { return nil })},
	})
	server := NewHTTPServer(svc, "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/ready", "", nil)

	expectCode(t, rr, payload, http.StatusOK, "")
	if payload["status"] != "ready" {
		t.Errorf("expected status=ready, got %v", payload["status"])
	}
	checks, ok := payload["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks object, got %v", payload["checks"])
	}
	for _, name := range []string{"database", "redis"} {
		check, _ := checks[name].(map[string]any)
		if check["status"] != "ok" {
			t.Errorf("expected %s status=ok, got %v", name, check)
		}
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	fs := newFakeStore()
	fs.pingFn = func(context.Context) error { return errors.New("connection refused") }
	server := NewHTTPServer(newTestService(t, fs, Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/ready", "", nil)

	expectCode(t, rr, payload, http.StatusServiceUnavailable, "")
	if payload["ok"] != false || payload["status"] != "not_ready" {
		t.Fatalf("expected not_ready, got %v", payload)
	}
	checks := payload["checks"].(map[string]any)
	database := checks["database"].(map[string]any)
	if database["status"] != "error" || database["error"] != "connection refused" {
		t.Errorf("unexpected database check %v", database)
	}
}

func TestReadyEndpoint_BackendFailure(t *testing.T) {
	svc := newTestService(t, newFakeStore(), Deps{
		Checks: map[string]Pinger{"minio": pingerFunc(func(context.Context) error { return errors.New("bucket missing") })},
	})
	server := NewHTTPServer(svc, "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/ready", "", nil)

	expectCode(t, rr, payload, http.StatusServiceUnavailable, "")
	checks := payload["checks"].(map[string]any)
	if checks["database"].(map[string]any)["status"] != "ok" {
		t.Errorf("expected database ok, got %v", checks["database"])
	}
	if checks["minio"].(map[string]any)["status"] != "error" {
		t.Errorf("expected minio error, got %v", checks["minio"])
	}
}

func TestOptionsRequestReturnsNoContentWithCORS(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore(), Deps{}), "https://nyay.example")
	req := httptest.NewRequest(http.MethodOptions, "/api/documents", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://nyay.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore(), Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/elsewhere", "", nil)

	expectCode(t, rr, payload, http.StatusNotFound, "NOT_FOUND")
}
