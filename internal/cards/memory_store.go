package cards

import (
	"context"
	"sync"
	"time"

	"github.com/friendcards/backend/internal/models"
)

// MemoryStore keeps cards in process memory. Entries older than maxAge are
// dropped whenever a card is written.
type MemoryStore struct {
	mu     sync.RWMutex
	cards  map[string]CardProfile
	maxAge time.Duration
	now    func() time.Time
}

// NewMemoryStore returns an empty store. maxAge <= 0 disables eviction; a
// nil clock uses time.Now.
func NewMemoryStore(maxAge time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		cards:  make(map[string]CardProfile),
		maxAge: maxAge,
		now:    now,
	}
}

func (s *MemoryStore) Get(_ context.Context, publicID string) (CardProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[publicID]
	if !ok {
		return CardProfile{}, models.ErrNotFound
	}
	return card, nil
}

func (s *MemoryStore) Put(_ context.Context, card CardProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.PublicID] = card
	s.gcLocked()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	delete(s.cards, publicID)
	s.mu.Unlock()
	return nil
}

// Len reports how many cards are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}

func (s *MemoryStore) gcLocked() {
	if s.maxAge <= 0 {
		return
	}
	now := s.now()
	for id, card := range s.cards {
		if now.Sub(card.ComputedAt) > s.maxAge {
			delete(s.cards, id)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
