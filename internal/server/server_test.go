package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct{ err error }

func (s stubChecker) Health(ctx context.Context) error { return s.err }

func TestHandleHealth_AllHealthy(t *testing.T) {
	s := NewServer(map[string]Checker{
		"database": stubChecker{},
		"cache":    stubChecker{},
	}, 0)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if body["status"] != string(StatusHealthy) {
		t.Errorf("Expected healthy, got %s", body["status"])
	}
}

func TestHandleHealth_DegradedDependency(t *testing.T) {
	s := NewServer(map[string]Checker{
		"database": stubChecker{},
		"cache":    stubChecker{err: errors.New("connection refused")},
	}, 0)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestHandleDetailed(t *testing.T) {
	s := NewServer(map[string]Checker{
		"database": stubChecker{},
		"cache":    stubChecker{err: errors.New("down")},
	}, 0)

	rec := httptest.NewRecorder()
	s.handleDetailed(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if report.SystemStatus != StatusDegraded {
		t.Errorf("Expected degraded system, got %s", report.SystemStatus)
	}
	if report.Dependencies["database"] != StatusHealthy {
		t.Errorf("Expected healthy database, got %s", report.Dependencies["database"])
	}
	if report.Dependencies["cache"] != StatusDegraded {
		t.Errorf("Expected degraded cache, got %s", report.Dependencies["cache"])
	}
}
