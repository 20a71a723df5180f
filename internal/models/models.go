package models

import "time"

// RelationshipStatus is the lifecycle state of a directed relationship record.
type RelationshipStatus string

const (
	StatusPending  RelationshipStatus = "pending"
	StatusAccepted RelationshipStatus = "accepted"
	StatusDeclined RelationshipStatus = "declined"
)

// Valid reports whether s is one of the known statuses.
func (s RelationshipStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// Relationship is a directed edge from Sender to Receiver. At most one
// record exists per ordered pair; a mutual friendship is two accepted records.
type Relationship struct {
	ID         string             `json:"id"`
	SenderID   string             `json:"senderId"`
	ReceiverID string             `json:"receiverId"`
	Status     RelationshipStatus `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// Counterparty returns the other side of the record relative to publicID.
func (r Relationship) Counterparty(publicID string) string {
	if r.SenderID == publicID {
		return r.ReceiverID
	}
	return r.SenderID
}

// Profile is an account within the FriendCards platform. It doubles as the
// identity record that the relationship core references by PublicID.
type Profile struct {
	PublicID     string
	Username     string
	Email        string
	Password     string
	DisplayName  string
	AvatarURL    string
	InterestTags []string
	IsPublic     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary returns the public-facing subset of the profile.
func (p Profile) Summary() ProfileSummary {
	return ProfileSummary{
		PublicID:    p.PublicID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

// SortName is the name used when ordering profiles for display.
func (p ProfileSummary) SortName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}

// ProfileSummary is embedded in listing responses.
type ProfileSummary struct {
	PublicID    string `json:"publicId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// ProfileSettings holds the user-editable profile fields. Nil fields are left unchanged.
type ProfileSettings struct {
	DisplayName  *string
	InterestTags []string
	IsPublic     *bool
}

// Connection is one entry in a followers/following listing.
type Connection struct {
	RelationshipID string             `json:"relationshipId"`
	Counterparty   ProfileSummary     `json:"counterparty"`
	Status         RelationshipStatus `json:"status"`
	Since          time.Time          `json:"since"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
