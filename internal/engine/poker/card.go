// Package poker implements the Texas Hold'em engine: a betting state machine
// over a standard 52-card deck with an in-package hand evaluator.
package poker

import (
	"fmt"
	"math/rand"
)

type Suit string

const (
	Clubs    Suit = "clubs"
	Diamonds Suit = "diamonds"
	Hearts   Suit = "hearts"
	Spades   Suit = "spades"
)

var suits = []Suit{Clubs, Diamonds, Hearts, Spades}

// Rank runs 2..14 with ace high; the straight detector treats 14 as 1 when an
// ace-low straight is possible.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

var rankNames = map[Rank]string{
	Two: "2", Three: "3", Four: "4", Five: "5", Six: "6", Seven: "7",
	Eight: "8", Nine: "9", Ten: "10", Jack: "J", Queen: "Q", King: "K", Ace: "A",
}

type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", rankNames[c.Rank], c.Suit)
}

// NewDeck returns the 52 cards in a fixed canonical order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range suits {
		for r := Two; r <= Ace; r++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// ShuffledDeck builds a deck and Fisher-Yates shuffles it with the given
// seed. The seed lives in the hand state so the shuffle is reproducible from
// the state alone.
func ShuffledDeck(seed int64) []Card {
	deck := NewDeck()
	rng := rand.New(rand.NewSource(seed))
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}
