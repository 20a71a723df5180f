// Package cards computes and caches the rank/suit badge derived from a
// profile's relationship graph and interests.
package cards

import (
	"time"

	"github.com/friendcards/backend/internal/models"
	"github.com/friendcards/backend/internal/ranking"
)

// CardProfile is the cached (rank, suit, friends count) triple for one identity.
type CardProfile struct {
	PublicID     string       `json:"publicId"`
	Rank         ranking.Rank `json:"rank"`
	Suit         ranking.Suit `json:"suit"`
	FriendsCount int          `json:"friendsCount"`
	ComputedAt   time.Time    `json:"computedAt"`
}

// CardView is a card with its rank progression, as returned to callers.
type CardView struct {
	CardProfile
	Progression ranking.Progression `json:"progression"`
}

// FriendCard pairs a friend's profile summary with their card.
type FriendCard struct {
	Profile models.ProfileSummary `json:"profile"`
	Card    CardView              `json:"card"`
}

func compute(profile models.Profile, friendsCount int, at time.Time) CardProfile {
	return CardProfile{
		PublicID:     profile.PublicID,
		Rank:         ranking.RankFromFriendCount(friendsCount),
		Suit:         ranking.SuitFromInterests(profile.InterestTags),
		FriendsCount: friendsCount,
		ComputedAt:   at,
	}
}

func view(card CardProfile) CardView {
	return CardView{CardProfile: card, Progression: ranking.RankProgression(card.Rank)}
}
