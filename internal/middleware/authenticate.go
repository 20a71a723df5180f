package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/friendcards/backend/internal/auth"
	"github.com/friendcards/backend/internal/logging"
)

// TokenVerifier resolves a bearer token to the profile it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (string, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// verified public id on the request context.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			if verifier == nil {
				logger.Error("token verifier unavailable")
				writeError(w, http.StatusInternalServerError, "authentication services unavailable")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			publicID, err := verifier.Verify(ctx, token)
			if err != nil {
				if errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrTokenExpired) {
					logger.Warn("bearer token rejected", "error", err)
					writeError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				logger.Error("verify bearer token", "error", err)
				writeError(w, http.StatusServiceUnavailable, "unable to verify token")
				return
			}

			next.ServeHTTP(w, r.WithContext(logging.WithActorID(ctx, publicID)))
		})
	}
}

// OperationTimeout bounds the request context with timeout. A non-positive
// timeout leaves the context untouched.
func OperationTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
