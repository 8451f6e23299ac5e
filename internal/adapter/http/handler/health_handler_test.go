package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corebank/corebank/internal/adapter/http/handler"
)

func TestHealthHandler_Liveness(t *testing.T) {
	h := handler.NewHealthHandler()

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []handler.HealthCheck
		wantStatus int
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
		},
		{
			name: "all healthy",
			checks: []handler.HealthCheck{
				func(ctx context.Context) error { return nil },
				func(ctx context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "one failing",
			checks: []handler.HealthCheck{
				func(ctx context.Context) error { return nil },
				func(ctx context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tt.checks...)

			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
