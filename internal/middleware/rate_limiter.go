package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether a caller may act now. When it may not, Take
// reports how long until the next token is available.
type RateLimiter interface {
	Take(key string) (retryAfter time.Duration, ok bool)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key. It is built once at
// startup and injected; buckets idle for longer than the ttl are dropped on
// the next call.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

// NewKeyedRateLimiter allows requests events per window for each key, with
// bursts of up to burst. A nil clock uses time.Now.
func NewKeyedRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration, now func() time.Time) *KeyedRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}

	return &KeyedRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		ttl:     ttl,
		now:     now,
	}
}

// Take consumes one token from key's bucket. A refused call consumes nothing.
func (l *KeyedRateLimiter) Take(key string) (time.Duration, bool) {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdleLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return 0, false
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// Len reports how many keys are currently tracked.
func (l *KeyedRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedRateLimiter) evictIdleLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
}

var _ RateLimiter = (*KeyedRateLimiter)(nil)
