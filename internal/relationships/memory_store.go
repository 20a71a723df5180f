package relationships

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/friendcards/backend/internal/models"
)

// MemoryStore implements Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.Relationship
	pairs   map[[2]string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.Relationship),
		pairs:   make(map[[2]string]string),
	}
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return models.Relationship{}, models.ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) FindByOrderedPair(_ context.Context, senderID, receiverID string) (models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairLocked(senderID, receiverID)
}

func (s *MemoryStore) FindAcceptedBetween(_ context.Context, a, b string) (models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		rec, err := s.pairLocked(pair[0], pair[1])
		if err == nil && rec.Status == models.StatusAccepted {
			return rec, nil
		}
	}
	return models.Relationship{}, models.ErrNotFound
}

func (s *MemoryStore) pairLocked(senderID, receiverID string) (models.Relationship, error) {
	id, ok := s.pairs[[2]string{senderID, receiverID}]
	if !ok {
		return models.Relationship{}, models.ErrNotFound
	}
	return s.records[id], nil
}

func (s *MemoryStore) CountAccepted(_ context.Context, publicID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counterparties := make(map[string]struct{})
	for _, rec := range s.records {
		if rec.Status != models.StatusAccepted {
			continue
		}
		if rec.SenderID == publicID || rec.ReceiverID == publicID {
			counterparties[rec.Counterparty(publicID)] = struct{}{}
		}
	}
	return len(counterparties), nil
}

func (s *MemoryStore) ListAccepted(_ context.Context, publicID string, role Role) ([]models.Relationship, error) {
	return s.list(func(rec models.Relationship) bool {
		if rec.Status != models.StatusAccepted {
			return false
		}
		if role == RoleReceiver {
			return rec.ReceiverID == publicID
		}
		return rec.SenderID == publicID
	}), nil
}

func (s *MemoryStore) ListPending(_ context.Context, receiverID string) ([]models.Relationship, error) {
	return s.list(func(rec models.Relationship) bool {
		return rec.Status == models.StatusPending && rec.ReceiverID == receiverID
	}), nil
}

func (s *MemoryStore) list(match func(models.Relationship) bool) []models.Relationship {
	s.mu.RLock()
	var out []models.Relationship
	for _, rec := range s.records {
		if match(rec) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) Insert(_ context.Context, rel models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{rel.SenderID, rel.ReceiverID}
	if _, exists := s.pairs[key]; exists {
		return models.ErrConflict
	}
	if _, exists := s.records[rel.ID]; exists {
		return models.ErrConflict
	}
	s.records[rel.ID] = rel
	s.pairs[key] = rel.ID
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to models.RelationshipStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return models.ErrNotFound
	}
	if rec.Status != from {
		return models.ErrConflict
	}
	rec.Status = to
	rec.UpdatedAt = at
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string, expected models.RelationshipStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Status != expected {
		return models.ErrNotFound
	}
	delete(s.records, id)
	delete(s.pairs, [2]string{rec.SenderID, rec.ReceiverID})
	return nil
}

// Len reports how many records are stored. Useful for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ Store = (*MemoryStore)(nil)
