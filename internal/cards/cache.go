package cards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendcards/backend/internal/models"
)

// DefaultTTL is how long a computed card stays fresh.
const DefaultTTL = 24 * time.Hour

// Store persists at most one card per identity. Put overwrites.
type Store interface {
	Get(ctx context.Context, publicID string) (CardProfile, error)
	Put(ctx context.Context, card CardProfile) error
	Delete(ctx context.Context, publicID string) error
}

// Cache applies a time-to-live over a Store. It is constructed once at
// startup and injected; tests control time through the clock.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewCache wraps store with the provided ttl. A nil clock uses time.Now.
func NewCache(store Store, ttl time.Duration, now func() time.Time) *Cache {
	if store == nil {
		panic("cards: cache store must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Cache{store: store, ttl: ttl, now: now}
}

// TTL reports the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time {
	return c.now()
}

// Fresh returns the stored card when it was computed less than TTL ago.
func (c *Cache) Fresh(ctx context.Context, publicID string) (CardProfile, bool, error) {
	card, err := c.store.Get(ctx, publicID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return CardProfile{}, false, nil
		}
		return CardProfile{}, false, fmt.Errorf("read cached card: %w", err)
	}
	if c.now().Sub(card.ComputedAt) >= c.ttl {
		return CardProfile{}, false, nil
	}
	return card, true, nil
}

// Save upserts the card.
func (c *Cache) Save(ctx context.Context, card CardProfile) error {
	if err := c.store.Put(ctx, card); err != nil {
		return fmt.Errorf("store card: %w", err)
	}
	return nil
}

// Invalidate deletes the stored card if present. A missing entry is not an error.
func (c *Cache) Invalidate(ctx context.Context, publicID string) error {
	if err := c.store.Delete(ctx, publicID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("delete cached card: %w", err)
	}
	return nil
}
