package handlers

import (
	"context"
	"time"

	"github.com/friendcards/backend/internal/cards"
	"github.com/friendcards/backend/internal/models"
	"github.com/friendcards/backend/internal/relationships"
)

// ProfileStore captures the profile persistence used by auth and settings handlers.
type ProfileStore interface {
	Create(ctx context.Context, profile models.Profile) error
	FindByEmail(ctx context.Context, email string) (models.Profile, error)
	UpdateSettings(ctx context.Context, publicID string, settings models.ProfileSettings, at time.Time) (models.Profile, error)
}

// SessionManager issues and refreshes authentication tokens for profiles.
type SessionManager interface {
	Issue(ctx context.Context, publicID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Verify(ctx context.Context, accessToken string) (string, error)
}

// RelationshipService drives the follow/request state machine.
type RelationshipService interface {
	Send(ctx context.Context, actorID, targetUsername string) (models.Relationship, error)
	Respond(ctx context.Context, actorID, requestID string, decision relationships.Decision) (*models.Relationship, error)
	Remove(ctx context.Context, actorID, otherID string) error
	ListFollowers(ctx context.Context, actorID string) ([]models.Connection, error)
	ListFollowing(ctx context.Context, actorID string) ([]models.Connection, error)
	ListPending(ctx context.Context, actorID string) ([]models.Connection, error)
}

// CardService serves cached card profiles.
type CardService interface {
	Get(ctx context.Context, publicID string) (cards.CardView, error)
	ListFriendCards(ctx context.Context, actorID string) ([]cards.FriendCard, error)
	Publish(ctx context.Context, actorID string) (string, error)
	Invalidate(ctx context.Context, publicID string)
}
