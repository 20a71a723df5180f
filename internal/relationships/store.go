package relationships

import (
	"context"
	"time"

	"github.com/friendcards/backend/internal/models"
)

// Role selects which side of a record a listing matches on.
type Role int

const (
	// RoleSender matches records the identity sent (the identity is following).
	RoleSender Role = iota
	// RoleReceiver matches records the identity received (its followers).
	RoleReceiver
)

func (r Role) String() string {
	if r == RoleReceiver {
		return "receiver"
	}
	return "sender"
}

// Store is the query contract over the relationship table. Reads must observe
// every write previously committed through the same Store.
type Store interface {
	FindByID(ctx context.Context, id string) (models.Relationship, error)
	// FindByOrderedPair returns the record sent by senderID to receiverID.
	FindByOrderedPair(ctx context.Context, senderID, receiverID string) (models.Relationship, error)
	// FindAcceptedBetween returns an accepted record in either direction,
	// preferring the one sent by a.
	FindAcceptedBetween(ctx context.Context, a, b string) (models.Relationship, error)
	// CountAccepted returns the number of distinct counterparties linked to
	// publicID by an accepted record in either direction.
	CountAccepted(ctx context.Context, publicID string) (int, error)
	ListAccepted(ctx context.Context, publicID string, role Role) ([]models.Relationship, error)
	ListPending(ctx context.Context, receiverID string) ([]models.Relationship, error)

	// Insert fails with models.ErrConflict when the ordered pair already exists.
	Insert(ctx context.Context, rel models.Relationship) error
	// UpdateStatus moves the record from one status to another. It fails with
	// models.ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to models.RelationshipStatus, at time.Time) error
	// Delete removes the record only while it still has the expected status.
	Delete(ctx context.Context, id string, expected models.RelationshipStatus) error
}

// ProfileDirectory resolves identities held by the external profile store.
type ProfileDirectory interface {
	FindByUsername(ctx context.Context, username string) (models.Profile, error)
	FindByIDs(ctx context.Context, publicIDs []string) (map[string]models.Profile, error)
}

// CardInvalidator drops cached card profiles. Implementations must not fail
// the caller; errors are handled on their side.
type CardInvalidator interface {
	Invalidate(ctx context.Context, publicID string)
}
