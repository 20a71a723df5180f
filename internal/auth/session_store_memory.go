package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process memory, indexed by token and
// by owning profile.
type MemorySessionStore struct {
	mu      sync.RWMutex
	byToken map[string]Session
	byOwner map[string]map[string]struct{}
}

// NewMemorySessionStore returns an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byToken: make(map[string]Session),
		byOwner: make(map[string]map[string]struct{}),
	}
}

func (s *MemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.byToken[session.Token]; ok {
		s.unindexLocked(previous)
	}
	s.byToken[session.Token] = session
	tokens, ok := s.byOwner[session.PublicID]
	if !ok {
		tokens = make(map[string]struct{})
		s.byOwner[session.PublicID] = tokens
	}
	tokens[session.Token] = struct{}{}
	return nil
}

func (s *MemorySessionStore) Find(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byToken[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.byToken[token]; ok {
		s.unindexLocked(session)
		delete(s.byToken, token)
	}
	return nil
}

// Has reports whether token is stored.
func (s *MemorySessionStore) Has(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byToken[token]
	return ok
}

// CountFor reports how many sessions publicID holds.
func (s *MemorySessionStore) CountFor(publicID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byOwner[publicID])
}

// Purge drops every session that expired at or before now and returns how
// many were removed.
func (s *MemorySessionStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.byToken {
		if now.Before(session.ExpiresAt) {
			continue
		}
		s.unindexLocked(session)
		delete(s.byToken, token)
		removed++
	}
	return removed
}

func (s *MemorySessionStore) unindexLocked(session Session) {
	tokens := s.byOwner[session.PublicID]
	delete(tokens, session.Token)
	if len(tokens) == 0 {
		delete(s.byOwner, session.PublicID)
	}
}

var _ SessionStore = (*MemorySessionStore)(nil)
