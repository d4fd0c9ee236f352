// internal/table/card.go
package table

import (
	"fmt"
	"math/rand"

	"github.com/paulhankin/poker"
)

// Card is a playing card as it appears on the wire.
type Card struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

var (
	ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}
	suits = []string{"clubs", "diamonds", "hearts", "spades"}

	rankValues = map[string]uint8{
		"A": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7,
		"8": 8, "9": 9, "T": 10, "J": 11, "Q": 12, "K": 13,
	}
	suitValues = map[string]uint8{
		"clubs": 0, "diamonds": 1, "hearts": 2, "spades": 3,
	}
)

// evalCard converts a Card to the evaluator's representation.
func evalCard(c Card) (poker.Card, error) {
	rank, ok := rankValues[c.Rank]
	if !ok {
		return 0, fmt.Errorf("invalid card rank %q", c.Rank)
	}
	suit, ok := suitValues[c.Suit]
	if !ok {
		return 0, fmt.Errorf("invalid card suit %q", c.Suit)
	}
	return poker.MakeCard(poker.Suit(suit), poker.Rank(rank))
}

// newDeck returns a full 52-card deck shuffled with rng.
func newDeck(rng *rand.Rand) []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
