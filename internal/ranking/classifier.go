// Package ranking derives the card rank and suit shown on a profile badge.
// Everything here is pure: no I/O, no clocks, no shared state.
package ranking

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Rank is one of the 13 ordered card tiers. The zero value is the lowest tier.
type Rank int

const (
	RankTwo Rank = iota
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
	RankAce
)

var rankNames = [...]string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

func (r Rank) String() string {
	if r < RankTwo || r > RankAce {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

// MarshalJSON encodes the rank by its card name.
func (r Rank) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the card name produced by MarshalJSON.
func (r *Rank) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseRank(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRank converts a card name ("2".."10", "J", "Q", "K", "A") into a Rank.
func ParseRank(name string) (Rank, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, candidate := range rankNames {
		if candidate == name {
			return Rank(i), nil
		}
	}
	return RankTwo, fmt.Errorf("unknown rank %q", name)
}

// Tier is one row of the threshold table. Both bounds are inclusive.
type Tier struct {
	Rank Rank
	Min  int
	Max  int
}

// Unbounded marks the open upper end of the top tier.
const Unbounded = math.MaxInt

// thresholds partitions [0, ∞) in ascending order with no gaps or overlaps.
var thresholds = [...]Tier{
	{Rank: RankTwo, Min: 0, Max: 0},
	{Rank: RankThree, Min: 1, Max: 2},
	{Rank: RankFour, Min: 3, Max: 5},
	{Rank: RankFive, Min: 6, Max: 9},
	{Rank: RankSix, Min: 10, Max: 14},
	{Rank: RankSeven, Min: 15, Max: 24},
	{Rank: RankEight, Min: 25, Max: 39},
	{Rank: RankNine, Min: 40, Max: 59},
	{Rank: RankTen, Min: 60, Max: 89},
	{Rank: RankJack, Min: 90, Max: 129},
	{Rank: RankQueen, Min: 130, Max: 179},
	{Rank: RankKing, Min: 180, Max: 249},
	{Rank: RankAce, Min: 250, Max: Unbounded},
}

// Thresholds returns a copy of the rank threshold table.
func Thresholds() []Tier {
	out := make([]Tier, len(thresholds))
	copy(out, thresholds[:])
	return out
}

// RankFromFriendCount returns the tier whose range contains n. Negative input
// falls back to the lowest tier.
func RankFromFriendCount(n int) Rank {
	if n < 0 {
		return thresholds[0].Rank
	}
	for _, tier := range thresholds {
		if n >= tier.Min && n <= tier.Max {
			return tier.Rank
		}
	}
	return thresholds[0].Rank
}

// Progression describes how a rank relates to the next tier up.
type Progression struct {
	NextRank          *Rank `json:"nextRank"`
	FriendsToNextRank int   `json:"friendsToNextRank"`
	RangeMin          int   `json:"rangeMin"`
	RangeMax          int   `json:"rangeMax"`
}

// RankProgression reports the tier bounds of r and the distance between the
// minimum of r and the minimum of the tier above it. The distance is a fixed
// per-tier value and does not depend on the caller's actual friend count.
func RankProgression(r Rank) Progression {
	idx := tierIndex(r)
	current := thresholds[idx]
	p := Progression{RangeMin: current.Min, RangeMax: current.Max}
	if idx+1 < len(thresholds) {
		next := thresholds[idx+1]
		nextRank := next.Rank
		p.NextRank = &nextRank
		p.FriendsToNextRank = next.Min - current.Min
	}
	return p
}

func tierIndex(r Rank) int {
	for i, tier := range thresholds {
		if tier.Rank == r {
			return i
		}
	}
	return 0
}
