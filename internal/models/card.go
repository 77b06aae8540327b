// internal/models/card.go
package models

// Suit is one of the four suits of the 40-card deck.
type Suit string

const (
	SuitDenari  Suit = "D"
	SuitSpade   Suit = "S"
	SuitCoppe   Suit = "C"
	SuitBastoni Suit = "B"
)

// Rank is one of the ten ranks of the 40-card deck. Face cards use single
// letters: F = Fante, V = Cavallo, R = Re, A = Asso.
type Rank string

const (
	Rank2       Rank = "2"
	Rank3       Rank = "3"
	Rank4       Rank = "4"
	Rank5       Rank = "5"
	Rank6       Rank = "6"
	Rank7       Rank = "7"
	RankFante   Rank = "F"
	RankCavallo Rank = "V"
	RankRe      Rank = "R"
	RankAsso    Rank = "A"
)

// Suits and Ranks enumerate the deck dimensions in strength order, weakest first.
var (
	Suits = []Suit{SuitBastoni, SuitCoppe, SuitSpade, SuitDenari}
	Ranks = []Rank{Rank2, Rank3, Rank4, Rank5, Rank6, Rank7, RankFante, RankCavallo, RankRe, RankAsso}
)

var rankWeight = map[Rank]int{
	Rank2: 2, Rank3: 3, Rank4: 4, Rank5: 5, Rank6: 6, Rank7: 7,
	RankFante: 8, RankCavallo: 9, RankRe: 10, RankAsso: 11,
}

var suitStrength = map[Suit]int{
	SuitBastoni: 1, SuitCoppe: 2, SuitSpade: 3, SuitDenari: 4,
}

// Card is an immutable suit/rank pair.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// Weight returns the rank strength used for trick resolution (2..11).
func (c Card) Weight() int {
	return rankWeight[c.Rank]
}

// Strength returns the suit strength used to break rank ties (1..4).
func (c Card) Strength() int {
	return suitStrength[c.Suit]
}

// Beats reports whether c wins against other under the trick comparison rule:
// higher rank weight wins, and on a rank tie the stronger suit wins. Two
// distinct cards never compare equal, so exactly one of c.Beats(other) and
// other.Beats(c) holds.
func (c Card) Beats(other Card) bool {
	if c.Weight() != other.Weight() {
		return c.Weight() > other.Weight()
	}
	return c.Strength() > other.Strength()
}

// Valid reports whether the suit/rank pair names a card of the deck.
func (c Card) Valid() bool {
	_, okRank := rankWeight[c.Rank]
	_, okSuit := suitStrength[c.Suit]
	return okRank && okSuit
}

func (c Card) String() string {
	return string(c.Rank) + string(c.Suit)
}

// NewDeck returns the full 40-card deck in canonical order. Callers shuffle.
func NewDeck() []Card {
	deck := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// HandCard is one entry of a player's dealt hand. Played flips exactly once,
// when the card is accepted into a trick.
type HandCard struct {
	Card   Card `json:"card"`
	Played bool `json:"played"`
}
