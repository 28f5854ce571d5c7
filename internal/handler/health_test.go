package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler(discardLogger(), HealthCheck{Name: "postgres", Checker: &mockHealthChecker{err: errors.New("down")}})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" || response.Checks != nil {
		t.Errorf("unexpected liveness response: %+v", response)
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantBody   HealthResponse
	}{
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "postgres", Checker: &mockHealthChecker{}},
				{Name: "redis", Checker: &mockHealthChecker{}},
			},
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "ok", Checks: map[string]string{"postgres": "ok", "redis": "ok"}},
		},
		{
			name: "database unhealthy",
			checks: []HealthCheck{
				{Name: "postgres", Checker: &mockHealthChecker{err: errors.New("connection refused")}},
				{Name: "redis", Checker: &mockHealthChecker{}},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   HealthResponse{Status: "unhealthy", Checks: map[string]string{"postgres": "unavailable", "redis": "ok"}},
		},
		{
			name:       "unconfigured dependency",
			checks:     []HealthCheck{{Name: "redis"}},
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "ok", Checks: map[string]string{"redis": "not configured"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(discardLogger(), tt.checks...)

			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var response HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.wantBody.Status {
				t.Errorf("status = %s, want %s", response.Status, tt.wantBody.Status)
			}
			for name, want := range tt.wantBody.Checks {
				if response.Checks[name] != want {
					t.Errorf("check %s = %q, want %q", name, response.Checks[name], want)
				}
			}
		})
	}
}

func TestHealthHandler_ReadyzHidesErrorDetail(t *testing.T) {
	secret := errors.New("dial postgres://admin:hunter2@db:5432 failed")
	h := NewHealthHandler(discardLogger(), HealthCheck{Name: "postgres", Checker: &mockHealthChecker{err: secret}})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if body := rec.Body.String(); strings.Contains(body, "hunter2") || strings.Contains(body, "postgres://") {
		t.Errorf("readiness body leaks error detail: %s", body)
	}
}
