// internal/game/scoring_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRoundDeltaExactBid(t *testing.T) {
	assert.Equal(t, 10, RoundDelta(0, 0))
	assert.Equal(t, 11, RoundDelta(1, 1))
	// Round 3, bid 2, won exactly 2 tricks.
	assert.Equal(t, 12, RoundDelta(2, 2))
	assert.Equal(t, 20, RoundDelta(10, 10))
}

func TestRoundDeltaMiss(t *testing.T) {
	assert.Equal(t, -1, RoundDelta(0, 1))
	assert.Equal(t, -1, RoundDelta(1, 0))
	assert.Equal(t, -3, RoundDelta(5, 2))
	// Bids above round size are legal, just unreachable.
	assert.Equal(t, -7, RoundDelta(0, 7))
}

// RoundDelta is pure: identical inputs always yield the identical delta.
func TestRoundDeltaIdempotent(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.Equal(t, RoundDelta(3, 3), RoundDelta(3, 3))
		assert.Equal(t, RoundDelta(4, 1), RoundDelta(4, 1))
	}
}

func TestGameWinners(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	winners := GameWinners(map[uuid.UUID]int{a: 30, b: 12, c: -4})
	assert.Equal(t, []uuid.UUID{a}, winners)

	winners = GameWinners(map[uuid.UUID]int{a: 15, b: 15, c: 2})
	assert.Len(t, winners, 2, "equal top scores are a reported tie")
	assert.Contains(t, winners, a)
	assert.Contains(t, winners, b)

	// Negative scores can still win.
	winners = GameWinners(map[uuid.UUID]int{a: -2, b: -8})
	assert.Equal(t, []uuid.UUID{a}, winners)
}
