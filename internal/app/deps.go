package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/friendcards/backend/internal/auth"
	"github.com/friendcards/backend/internal/cards"
	"github.com/friendcards/backend/internal/config"
	"github.com/friendcards/backend/internal/db"
	"github.com/friendcards/backend/internal/handlers"
	"github.com/friendcards/backend/internal/metrics"
	"github.com/friendcards/backend/internal/middleware"
	"github.com/friendcards/backend/internal/redisstore"
	"github.com/friendcards/backend/internal/relationships"
	"github.com/friendcards/backend/internal/repositories"
	"github.com/friendcards/backend/internal/storage"
)

type cleanupFunc func(ctx context.Context) error

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup releases connections opened here; the pool
// itself stays owned by the caller.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, cleanupFunc, error) {
	var closers []func() error
	cleanup := func(context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	cardStore, closeStore, err := buildCardStore(ctx, pool, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	var snapshots cards.SnapshotStorage
	if cfg.ObjectStore.Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			_ = cleanup(ctx)
			return handlers.Dependencies{}, nil, fmt.Errorf("configure card snapshot storage: %w", err)
		}
		snapshots = s3Storage
	}

	profiles := repositories.NewPostgresProfileRepository(pool)
	graph := repositories.NewPostgresRelationshipStore(pool)

	cache := cards.NewCache(cardStore, cfg.CardCacheTTL, nil)
	cardService := cards.NewService(cache, graph, profiles, snapshots)
	relationshipService := relationships.NewService(graph, profiles, cardService)

	sessions := auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, repositories.NewPostgresSessionStore(pool))
	limiter := middleware.NewKeyedRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 0, nil)

	deps := handlers.Dependencies{
		Profiles:         profiles,
		Sessions:         sessions,
		Relationships:    relationshipService,
		Cards:            cardService,
		Limiter:          limiter,
		Metrics:          metrics.Handler(),
		OperationTimeout: cfg.OperationTimeout,
	}
	if pinger, ok := pool.(handlers.Pinger); ok {
		deps.Database = pinger
	}

	return deps, cleanup, nil
}

func buildCardStore(ctx context.Context, pool db.Pool, cfg config.Config) (cards.Store, func() error, error) {
	switch cfg.CardCacheBackend {
	case config.CacheBackendRedis:
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect card cache: %w", err)
		}
		return redisstore.NewCardStore(client, cfg.CardCacheTTL), client.Close, nil
	case config.CacheBackendMemory:
		return cards.NewMemoryStore(cfg.CardCacheTTL, nil), nil, nil
	case config.CacheBackendPostgres, "":
		return repositories.NewPostgresCardStore(pool), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown card cache backend %q", cfg.CardCacheBackend)
	}
}
