package observability

import (
	"encoding/json"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	HealthHandler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("health endpoint returned %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("health body not valid JSON: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("unexpected status %q", resp.Status)
	}
	if resp.Goroutines < 1 {
		t.Errorf("goroutine count %d, expected at least 1", resp.Goroutines)
	}
}

func TestReadinessHandler_FlipsWhenDraining(t *testing.T) {
	var draining atomic.Bool
	handler := ReadinessHandler(&draining)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != 200 {
		t.Fatalf("ready endpoint returned %d before draining", rec.Code)
	}

	draining.Store(true)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != 503 {
		t.Fatalf("ready endpoint returned %d while draining, expected 503", rec.Code)
	}
}
