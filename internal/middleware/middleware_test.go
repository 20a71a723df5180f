package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/friendcards/backend/internal/auth"
	"github.com/friendcards/backend/internal/logging"
)

type stubVerifier struct {
	tokens map[string]string
	err    error
}

func (s stubVerifier) Verify(_ context.Context, token string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	id, ok := s.tokens[token]
	if !ok {
		return "", auth.ErrSessionNotFound
	}
	return id, nil
}

func TestAuthenticate(t *testing.T) {
	verifier := stubVerifier{tokens: map[string]string{"good": "pid-1"}}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.ActorIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		verifier TokenVerifier
		header   string
		status   int
		actor    string
	}{
		{name: "valid token", verifier: verifier, header: "Bearer good", status: http.StatusNoContent, actor: "pid-1"},
		{name: "lowercase scheme", verifier: verifier, header: "bearer good", status: http.StatusNoContent, actor: "pid-1"},
		{name: "missing header", verifier: verifier, status: http.StatusUnauthorized},
		{name: "wrong scheme", verifier: verifier, header: "Basic good", status: http.StatusUnauthorized},
		{name: "unknown token", verifier: verifier, header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "expired token", verifier: stubVerifier{err: auth.ErrTokenExpired}, header: "Bearer good", status: http.StatusUnauthorized},
		{name: "store failure", verifier: stubVerifier{err: errors.New("boom")}, header: "Bearer good", status: http.StatusServiceUnavailable},
		{name: "no verifier", header: "Bearer good", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cards/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authenticate(tt.verifier)(next).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d got %d", tt.status, rec.Code)
			}
			if seen != tt.actor {
				t.Fatalf("expected actor %q got %q", tt.actor, seen)
			}
		})
	}
}

func TestOperationTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	OperationTimeout(time.Second)(next).ServeHTTP(httptest.NewRecorder(), req)
	if !ok || time.Until(deadline) > time.Second {
		t.Fatalf("expected deadline within a second, got %v ok=%v", deadline, ok)
	}

	OperationTimeout(0)(next).ServeHTTP(httptest.NewRecorder(), req)
	if ok {
		t.Fatal("expected no deadline when timeout is disabled")
	}
}

func TestKeyedRateLimiter(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewKeyedRateLimiter(1, time.Minute, 2, 10*time.Minute, func() time.Time { return now })

	allowed := func(key string) bool {
		_, ok := limiter.Take(key)
		return ok
	}

	if !allowed("a") || !allowed("a") {
		t.Fatal("expected burst of two to be allowed")
	}
	retryAfter, ok := limiter.Take("a")
	if ok {
		t.Fatal("expected third request to be limited")
	}
	if retryAfter != time.Minute {
		t.Fatalf("expected retry after one minute got %v", retryAfter)
	}
	if !allowed("b") {
		t.Fatal("expected other keys to have their own bucket")
	}

	now = now.Add(30 * time.Second)
	if retryAfter, ok := limiter.Take("a"); ok || retryAfter != 30*time.Second {
		t.Fatalf("refused calls must not consume tokens, got ok=%v retryAfter=%v", ok, retryAfter)
	}

	now = now.Add(30 * time.Second)
	if !allowed("a") {
		t.Fatal("expected a token to be refilled after the window")
	}

	now = now.Add(11 * time.Minute)
	allowed("c")
	if limiter.Len() != 1 {
		t.Fatalf("expected idle keys to be collected, tracking %d", limiter.Len())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var requestID string
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if requestID != "req-42" || rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("expected inbound request id to propagate, got %q / %q", requestID, rec.Header().Get(RequestIDHeader))
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"status":202`)) {
		t.Fatalf("expected completion log with status, got %s", buf.String())
	}

	panicking := RequestLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec = httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic got %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id header")
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("taken"))
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/relationships/send", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); len(got) > 128 || got == "" {
		t.Fatalf("expected oversized request id to be replaced, got %q", got)
	}
	for _, want := range []string{`"level":"WARN"`, `"status":409`, `"bytes":5`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %s in log line, got %s", want, buf.String())
		}
	}
}

func TestLevelFor(t *testing.T) {
	cases := map[int]slog.Level{
		http.StatusOK:                 slog.LevelInfo,
		http.StatusFound:              slog.LevelInfo,
		http.StatusNotFound:           slog.LevelWarn,
		http.StatusServiceUnavailable: slog.LevelError,
	}
	for code, want := range cases {
		if got := levelFor(code); got != want {
			t.Fatalf("levelFor(%d) = %v want %v", code, got, want)
		}
	}
	if statusClass(http.StatusTeapot) != "4xx" {
		t.Fatalf("unexpected class %q", statusClass(http.StatusTeapot))
	}
}
