package domain

import "math/rand"

// Card identifies one of the twenty hwatu cards used in Seotda.
// Ids run 1..20; each month owns two consecutive ids, the odd id being
// the first variant of the month and the even id the second.
type Card int

// DeckSize is the number of cards in a Seotda deck.
const DeckSize = 20

// HandSize is the number of scoring cards in a hand.
const HandSize = 2

// Month returns the card's month, 1..10.
func (c Card) Month() int {
	return (int(c) + 1) / 2
}

// IsLight reports whether the card is a light (gwang) card. The light
// cards are the first variants of months 1, 3 and 8.
func (c Card) IsLight() bool {
	return c == 1 || c == 5 || c == 15
}

// Valid reports whether the id denotes a card in the deck.
func (c Card) Valid() bool {
	return c >= 1 && c <= DeckSize
}

// NewDeck returns the ordered 20-card deck.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for id := 1; id <= DeckSize; id++ {
		deck = append(deck, Card(id))
	}
	return deck
}

// ShuffleDeck returns a shuffled copy of the given deck.
func ShuffleDeck(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
