// internal/game/scoring.go
package game

import "github.com/google/uuid"

// RoundDelta computes a player's score delta for a settled round. An exact bid
// pays 10 plus the bid; any miss costs the absolute distance between tricks
// won and the bid. Bids are never validated against round size, so a bid
// larger than the round simply cannot be hit.
func RoundDelta(tricksWon, bid int) int {
	if tricksWon == bid {
		return 10 + bid
	}
	diff := tricksWon - bid
	if diff < 0 {
		diff = -diff
	}
	return -diff
}

// GameWinners returns the identities holding the greatest cumulative score.
// More than one entry means the game ends in a reported tie.
func GameWinners(scores map[uuid.UUID]int) []uuid.UUID {
	var winners []uuid.UUID
	best := 0
	first := true
	for id, sc := range scores {
		switch {
		case first || sc > best:
			winners = []uuid.UUID{id}
			best = sc
			first = false
		case sc == best:
			winners = append(winners, id)
		}
	}
	return winners
}
