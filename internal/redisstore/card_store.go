// Package redisstore keeps card profiles in Redis so every API instance shares
// one cache.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/friendcards/backend/internal/cards"
	"github.com/friendcards/backend/internal/models"
)

// KeyPrefix namespaces card keys.
const KeyPrefix = "friendcards:card:"

// Config controls how the Redis client connects.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// CardStore implements cards.Store on Redis. Keys expire after ttl so Redis
// reclaims cards nobody reads again.
type CardStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCardStore wraps client. ttl <= 0 stores keys without expiry.
func NewCardStore(client redis.Cmdable, ttl time.Duration) *CardStore {
	return &CardStore{client: client, ttl: ttl}
}

// Key returns the Redis key holding publicID's card.
func Key(publicID string) string {
	return KeyPrefix + publicID
}

func (s *CardStore) Get(ctx context.Context, publicID string) (cards.CardProfile, error) {
	raw, err := s.client.Get(ctx, Key(publicID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cards.CardProfile{}, models.ErrNotFound
		}
		return cards.CardProfile{}, fmt.Errorf("get card: %w: %w", models.ErrUnavailable, err)
	}

	var card cards.CardProfile
	if err := json.Unmarshal(raw, &card); err != nil {
		return cards.CardProfile{}, fmt.Errorf("decode card: %w", err)
	}
	return card, nil
}

func (s *CardStore) Put(ctx context.Context, card cards.CardProfile) error {
	raw, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("encode card: %w", err)
	}
	if err := s.client.Set(ctx, Key(card.PublicID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set card: %w: %w", models.ErrUnavailable, err)
	}
	return nil
}

func (s *CardStore) Delete(ctx context.Context, publicID string) error {
	if err := s.client.Del(ctx, Key(publicID)).Err(); err != nil {
		return fmt.Errorf("delete card: %w: %w", models.ErrUnavailable, err)
	}
	return nil
}

var _ cards.Store = (*CardStore)(nil)
