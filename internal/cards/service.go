package cards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/friendcards/backend/internal/logging"
	"github.com/friendcards/backend/internal/metrics"
	"github.com/friendcards/backend/internal/models"
	"github.com/friendcards/backend/internal/relationships"
)

var (
	// ErrProfileNotFound indicates there is no profile behind the identity.
	ErrProfileNotFound = fmt.Errorf("profile %w", models.ErrNotFound)
	// ErrPublishingDisabled indicates no snapshot storage is configured.
	ErrPublishingDisabled = errors.New("card publishing is not configured")
)

// Graph is the slice of the relationship store the card service reads.
type Graph interface {
	relationships.AcceptedLister
	CountAccepted(ctx context.Context, publicID string) (int, error)
}

// ProfileReader loads profiles from the external profile store.
type ProfileReader interface {
	FindByID(ctx context.Context, publicID string) (models.Profile, error)
	FindByIDs(ctx context.Context, publicIDs []string) (map[string]models.Profile, error)
}

// SnapshotStorage uploads published card snapshots and returns their location.
type SnapshotStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Service serves card profiles from the cache and recomputes them on a miss.
// Concurrent recomputation for the same identity is not serialized; both
// writers upsert the same result.
type Service struct {
	cache    *Cache
	graph    Graph
	profiles ProfileReader
	storage  SnapshotStorage

	fanout int
}

// NewService constructs the card service. storage may be nil to disable publishing.
func NewService(cache *Cache, graph Graph, profiles ProfileReader, storage SnapshotStorage) *Service {
	if cache == nil || graph == nil || profiles == nil {
		panic("cards: cache, graph and profiles must not be nil")
	}
	return &Service{
		cache:    cache,
		graph:    graph,
		profiles: profiles,
		storage:  storage,
		fanout:   8,
	}
}

// Get returns the identity's card, recomputing it when the cached copy is
// missing or older than the cache TTL.
func (s *Service) Get(ctx context.Context, publicID string) (CardView, error) {
	card, err := s.get(ctx, publicID)
	if err != nil {
		return CardView{}, err
	}
	return view(card), nil
}

func (s *Service) get(ctx context.Context, publicID string) (CardProfile, error) {
	logger := logging.FromContext(ctx)

	cached, ok, err := s.cache.Fresh(ctx, publicID)
	switch {
	case err != nil:
		metrics.CardCacheLookups.WithLabelValues("error").Inc()
		logger.Warn("card cache read failed, recomputing", "publicId", publicID, "error", err)
	case ok:
		metrics.CardCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.CardCacheLookups.WithLabelValues("miss").Inc()
	}

	return s.recompute(ctx, publicID)
}

func (s *Service) recompute(ctx context.Context, publicID string) (card CardProfile, err error) {
	ctx, span := logging.StartSpan(ctx, "cards.recompute", slog.String("publicId", publicID))
	start := time.Now()
	defer func() {
		metrics.CardRecomputeDuration.Observe(time.Since(start).Seconds())
		if !errors.Is(err, models.ErrNotFound) {
			span.Fail(err)
		}
		span.End()
	}()

	profile, err := s.profiles.FindByID(ctx, publicID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return CardProfile{}, ErrProfileNotFound
		}
		return CardProfile{}, fmt.Errorf("load profile: %w", err)
	}

	count, err := s.graph.CountAccepted(ctx, publicID)
	if err != nil {
		return CardProfile{}, fmt.Errorf("count accepted relationships: %w", err)
	}

	card = compute(profile, count, s.cache.Now())
	if err := s.cache.Save(ctx, card); err != nil {
		logging.FromContext(ctx).Warn("card cache write failed", "publicId", publicID, "error", err)
	}
	return card, nil
}

// Invalidate drops the identity's cached card. Failures are logged and
// swallowed; the card goes stale for at most one TTL.
func (s *Service) Invalidate(ctx context.Context, publicID string) {
	if err := s.cache.Invalidate(ctx, publicID); err != nil {
		metrics.CardInvalidationFailures.Inc()
		logging.FromContext(ctx).Warn("card invalidation failed", "publicId", publicID, "error", err)
	}
}

// ListFriendCards returns the cards of every accepted counterparty of the
// actor, sorted by display name and then public id.
func (s *Service) ListFriendCards(ctx context.Context, actorID string) ([]FriendCard, error) {
	ctx, span := logging.StartSpan(ctx, "cards.list_friends", slog.String("actorId", actorID))
	defer span.End()

	ids, err := relationships.FriendIDs(ctx, s.graph, actorID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []FriendCard{}, nil
	}

	profiles, err := s.profiles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load friend profiles: %w", err)
	}

	var (
		mu  sync.Mutex
		out = make([]FriendCard, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for _, id := range ids {
		profile, ok := profiles[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			card, err := s.get(gctx, profile.PublicID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("card for %s: %w", profile.PublicID, err)
			}
			mu.Lock()
			out = append(out, FriendCard{Profile: profile.Summary(), Card: view(card)})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Profile.SortName()), strings.ToLower(out[j].Profile.SortName())
		if a != b {
			return a < b
		}
		return out[i].Profile.PublicID < out[j].Profile.PublicID
	})
	return out, nil
}

// Publish uploads the actor's current card as a JSON snapshot and returns
// the stored location.
func (s *Service) Publish(ctx context.Context, actorID string) (string, error) {
	if s.storage == nil {
		return "", ErrPublishingDisabled
	}

	card, err := s.Get(ctx, actorID)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("encode card snapshot: %w", err)
	}

	location, err := s.storage.Save(ctx, fmt.Sprintf("cards/%s.json", actorID), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("upload card snapshot: %w", err)
	}
	logging.FromContext(ctx).Info("card snapshot published", "publicId", actorID, "location", location)
	return location, nil
}

var _ relationships.CardInvalidator = (*Service)(nil)
