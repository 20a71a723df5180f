package ranking

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit groups a profile by the dominant theme of its interest tags.
type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitSpades   Suit = "spades"
	SuitClubs    Suit = "clubs"
)

// suitOrder doubles as the tie-break order: earlier suits win ties.
var suitOrder = [...]Suit{SuitHearts, SuitDiamonds, SuitSpades, SuitClubs}

// suitInterests holds the canonical, lower-cased tag set for each suit.
var suitInterests = map[Suit]map[string]struct{}{
	SuitHearts: tagSet(
		"fashion", "beauty", "skincare", "wellness", "home decor",
		"family", "pets", "cooking", "romance", "self care",
	),
	SuitDiamonds: tagSet(
		"jewelry", "watches", "luxury", "designer", "art",
		"collectibles", "investing", "finance", "wine", "real estate",
	),
	SuitSpades: tagSet(
		"technology", "gaming", "gadgets", "electronics", "software",
		"photography", "music", "movies", "books", "anime",
	),
	SuitClubs: tagSet(
		"sports", "fitness", "outdoors", "travel", "camping",
		"cycling", "running", "hiking", "football", "gardening",
	),
}

func tagSet(tags ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}

// Suits returns every suit in tie-break order.
func Suits() []Suit {
	return append([]Suit(nil), suitOrder[:]...)
}

// ParseSuit validates a suit name.
func ParseSuit(name string) (Suit, error) {
	s := Suit(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := suitInterests[s]; !ok {
		return SuitHearts, fmt.Errorf("unknown suit %q", name)
	}
	return s, nil
}

// UnmarshalJSON rejects unknown suit names.
func (s *Suit) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSuit(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SuitFromInterests counts case-insensitive matches of tags against each
// suit's canonical set and returns the suit with the strict highest count.
// Ties resolve hearts > diamonds > spades > clubs; no matches yields hearts.
func SuitFromInterests(tags []string) Suit {
	counts := make(map[Suit]int, len(suitOrder))
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		for _, suit := range suitOrder {
			if _, ok := suitInterests[suit][normalized]; ok {
				counts[suit]++
			}
		}
	}

	best := suitOrder[0]
	bestCount := counts[best]
	for _, suit := range suitOrder[1:] {
		if counts[suit] > bestCount {
			best = suit
			bestCount = counts[suit]
		}
	}
	return best
}
