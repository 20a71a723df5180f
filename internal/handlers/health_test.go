package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandlerHandle(t *testing.T) {
	tests := []struct {
		name     string
		handler  HealthHandler
		method   string
		status   int
		jsonBody bool
	}{
		{name: "no database", handler: HealthHandler{}, method: http.MethodGet, status: http.StatusOK, jsonBody: true},
		{name: "database up", handler: HealthHandler{Database: pingFunc(func(context.Context) error { return nil })}, method: http.MethodGet, status: http.StatusOK, jsonBody: true},
		{name: "database down", handler: HealthHandler{Database: pingFunc(func(context.Context) error { return errors.New("refused") })}, method: http.MethodGet, status: http.StatusServiceUnavailable, jsonBody: true},
		{name: "wrong method", handler: HealthHandler{}, method: http.MethodPost, status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.Handle(rec, httptest.NewRequest(tt.method, "/healthz", nil))

			if rec.Code != tt.status {
				t.Fatalf("expected status %d got %d", tt.status, rec.Code)
			}
			if tt.jsonBody && rec.Header().Get("Content-Type") != "application/json" {
				t.Fatalf("expected json content type got %s", rec.Header().Get("Content-Type"))
			}
		})
	}
}
