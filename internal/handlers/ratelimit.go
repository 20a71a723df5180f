package handlers

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/friendcards/backend/internal/logging"
)

// RateLimiter is the minimal interface required to guard mutation endpoints.
type RateLimiter interface {
	Take(key string) (retryAfter time.Duration, ok bool)
}

// allowRequest writes 429 with a Retry-After header and returns false when
// the caller is over its budget.
func allowRequest(limiter RateLimiter, w http.ResponseWriter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	retryAfter, ok := limiter.Take(rateLimitKey(r, scope))
	if ok {
		return true
	}
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	respondError(r.Context(), w, http.StatusTooManyRequests, "too many requests")
	return false
}

// rateLimitKey prefers the authenticated actor over the client address.
func rateLimitKey(r *http.Request, scope string) string {
	caller := logging.ActorIDFromContext(r.Context())
	if caller == "" {
		caller = clientIP(r)
	}
	if scope == "" {
		return caller
	}
	return fmt.Sprintf("%s:%s", scope, caller)
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
