package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendcards/backend/internal/logging"
	"github.com/friendcards/backend/internal/metrics"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// statusRecorder remembers the status and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *statusRecorder) WriteHeader(status int) {
	if rw.status != 0 {
		return
	}
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(p []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += n
	return n, err
}

func (rw *statusRecorder) code() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// levelFor logs server faults as errors and client faults as warnings.
func levelFor(code int) slog.Level {
	switch {
	case code >= 500:
		return slog.LevelError
	case code >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func requestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLength {
		return uuid.NewString()
	}
	return id
}

// RequestLogger attaches a request-scoped logger and request id to the
// context, echoes the id, recovers panics, and records one log line and one
// metric sample per request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := requestID(r)

			reqLogger := base.With(
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			ctx := logging.WithRequestID(logging.WithLogger(r.Context(), reqLogger), id)

			w.Header().Set(RequestIDHeader, id)
			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				if p := recover(); p != nil {
					reqLogger.Error("panic recovered", "panic", p)
					if rec.status == 0 {
						http.Error(rec, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					}
				}

				code := rec.code()
				elapsed := time.Since(start)
				metrics.HTTPRequests.WithLabelValues(r.Method, statusClass(code)).Inc()
				metrics.HTTPRequestDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())
				reqLogger.Log(ctx, levelFor(code), "request completed",
					slog.Int("status", code),
					slog.Int("bytes", rec.bytes),
					slog.String("remote_addr", r.RemoteAddr),
					slog.Duration("duration", elapsed),
				)
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}
