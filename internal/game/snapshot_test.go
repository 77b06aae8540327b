// internal/game/snapshot_test.go
package game

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Snapshot → JSON → restore must reproduce an identical round state: same
// hands, bids, scores, phase, and turn pointer.
func TestSnapshotRoundTrip(t *testing.T) {
	e, ids, _ := setupTestEngine(t, 2)
	readyAll(t, e, ids)
	bidAll(t, e, ids, 1)
	// One play in flight so the snapshot carries trick state.
	playNextCard(t, e)

	snap := e.Snapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored := RestoreEngine(decoded)

	assert.Equal(t, e.ID, restored.ID)
	assert.Equal(t, e.RoomCode, restored.RoomCode)
	assert.Equal(t, e.Round, restored.Round)
	assert.Equal(t, e.Phase, restored.Phase)
	assert.Equal(t, e.members, restored.members)
	assert.Equal(t, e.trickLeader, restored.trickLeader)
	assert.Equal(t, e.lastRoundWinner, restored.lastRoundWinner)
	require.NotNil(t, restored.sched)
	assert.Equal(t, e.sched.Order(), restored.sched.Order())
	assert.Equal(t, e.sched.TurnIndex(), restored.sched.TurnIndex())

	for _, id := range ids {
		orig, ok := e.Players[id]
		require.True(t, ok)
		got, ok := restored.Players[id]
		require.True(t, ok)
		assert.Equal(t, orig.Hand, got.Hand)
		assert.Equal(t, orig.Bid, got.Bid)
		assert.Equal(t, orig.TricksWon, got.TricksWon)
		assert.Equal(t, orig.Score, got.Score)
		assert.Equal(t, orig.PlayedCard, got.PlayedCard)
	}
}

// A restored engine keeps playing: the round in flight finishes normally.
func TestRestoredEngineContinues(t *testing.T) {
	e, ids, _ := setupTestEngine(t, 2)
	readyAll(t, e, ids)
	bidAll(t, e, ids, 0)
	playNextCard(t, e)

	restored := RestoreEngine(e.Snapshot())
	mb := newMockBroadcaster()
	restored.BroadcastFn = mb.broadcastFn
	restored.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	playNextCard(t, restored)
	require.NotNil(t, mb.lastOfType(EventTrickResolved))
	require.NotNil(t, mb.lastOfType(EventRoundFinished))
	assert.Equal(t, PhaseAwaitingStart, restored.Phase)
}

func TestViewObfuscatesOpponents(t *testing.T) {
	e, ids, _ := setupTestEngine(t, 2)
	readyAll(t, e, ids)
	require.NoError(t, e.PlaceBid(ids[0], 1))

	view := e.View(ids[0])
	assert.Equal(t, PhaseBidding, view.Phase)
	assert.Len(t, view.YourHand, 1)
	require.NotNil(t, view.YourBid)
	assert.Equal(t, 1, *view.YourBid)

	require.Len(t, view.Opponents, 1)
	opp := view.Opponents[0]
	assert.Equal(t, ids[1], opp.ID)
	assert.Equal(t, 1, opp.HandSize)
	assert.False(t, opp.HasBid)
	assert.Nil(t, opp.Bid, "opponent bids stay hidden during bidding")

	require.NoError(t, e.PlaceBid(ids[1], 0))
	view = e.View(ids[0])
	require.NotNil(t, view.Opponents[0].Bid, "bids reveal once trick play starts")
	assert.Equal(t, 0, *view.Opponents[0].Bid)
	assert.NotEqual(t, uuid.Nil, view.CurrentTurn)
}
