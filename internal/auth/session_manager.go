// Package auth issues and verifies the opaque bearer tokens that identify the
// acting profile on every relationship and card request.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/friendcards/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenExpired indicates the token is past its expiry and cannot be used.
	ErrTokenExpired = errors.New("token expired")
)

// Kind distinguishes short-lived access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// SessionStore persists issued tokens so they survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// Session is one issued token bound to a profile.
type Session struct {
	Token     string
	Kind      Kind
	PublicID  string
	ExpiresAt time.Time
}

// Manager manages the lifecycle of issued tokens backed by a persistent store.
type Manager struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	store SessionStore
}

// NewManager constructs a Manager that issues access and refresh tokens with the provided TTLs.
func NewManager(accessTTL, refreshTTL time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
		store:      store,
	}
}

// WithClock replaces the clock used to stamp and check expiries.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// Issue creates a new access and refresh token pair for publicID.
func (m *Manager) Issue(ctx context.Context, publicID string) (models.SessionTokens, error) {
	if publicID == "" {
		return models.SessionTokens{}, errors.New("public id must be provided")
	}

	now := m.now()
	accessToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, err
	}
	refreshToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, err
	}

	tokens := models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(m.accessTTL),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	if err := m.store.Save(ctx, Session{Token: accessToken, Kind: KindAccess, PublicID: publicID, ExpiresAt: tokens.AccessExpiresAt}); err != nil {
		return models.SessionTokens{}, fmt.Errorf("save access session: %w", err)
	}
	if err := m.store.Save(ctx, Session{Token: refreshToken, Kind: KindRefresh, PublicID: publicID, ExpiresAt: tokens.RefreshExpiresAt}); err != nil {
		return models.SessionTokens{}, fmt.Errorf("save refresh session: %w", err)
	}

	return tokens, nil
}

// Verify resolves an access token to the profile it was issued for.
func (m *Manager) Verify(ctx context.Context, accessToken string) (string, error) {
	session, err := m.lookup(ctx, accessToken, KindAccess)
	if err != nil {
		return "", err
	}
	return session.PublicID, nil
}

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token is consumed.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	session, err := m.lookup(ctx, refreshToken, KindRefresh)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.Delete(ctx, refreshToken); err != nil {
		return models.SessionTokens{}, err
	}

	return m.Issue(ctx, session.PublicID)
}

// Revoke removes the token from the active session store.
func (m *Manager) Revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_ = m.store.Delete(ctx, token)
}

func (m *Manager) lookup(ctx context.Context, token string, kind Kind) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if session.Kind != kind {
		return Session{}, ErrSessionNotFound
	}

	if !m.now().Before(session.ExpiresAt) {
		_ = m.store.Delete(ctx, token)
		return Session{}, ErrTokenExpired
	}
	return session, nil
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
