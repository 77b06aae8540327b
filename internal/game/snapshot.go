// internal/game/snapshot.go
package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tommasop/stima/internal/models"
)

// Snapshot is the serializable image of an engine's round state, handed to the
// persistence gateway after every accepted action. Restoring a snapshot yields
// an engine with identical hands, bids, scores, and phase.
type Snapshot struct {
	GameID          uuid.UUID     `json:"gameId"`
	RoomCode        string        `json:"roomCode"`
	Round           int           `json:"round"`
	Phase           Phase         `json:"phase"`
	Members         []uuid.UUID   `json:"members"`
	Players         []PlayerState `json:"players"`
	TrickLeader     uuid.UUID     `json:"trickLeader"`
	LastRoundWinner uuid.UUID     `json:"lastRoundWinner"`
	PlayOrder       []uuid.UUID   `json:"playOrder,omitempty"`
	TurnIndex       int           `json:"turnIndex"`
	Ready           []uuid.UUID   `json:"ready,omitempty"`
}

// snapshotLocked captures the full engine state. Assumes Mu is held.
func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		GameID:          e.ID,
		RoomCode:        e.RoomCode,
		Round:           e.Round,
		Phase:           e.Phase,
		Members:         append([]uuid.UUID(nil), e.members...),
		TrickLeader:     e.trickLeader,
		LastRoundWinner: e.lastRoundWinner,
	}
	for _, id := range e.members {
		p := e.Players[id]
		cp := *p
		cp.Hand = append([]models.HandCard(nil), p.Hand...)
		if p.PlayedCard != nil {
			c := *p.PlayedCard
			cp.PlayedCard = &c
		}
		snap.Players = append(snap.Players, cp)
	}
	if e.sched != nil {
		snap.PlayOrder = e.sched.Order()
		snap.TurnIndex = e.sched.TurnIndex()
	}
	for id := range e.ready {
		snap.Ready = append(snap.Ready, id)
	}
	return snap
}

// Snapshot captures the engine state for persistence or inspection.
func (e *Engine) Snapshot() Snapshot {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	return e.snapshotLocked()
}

// RestoreEngine rebuilds an engine from a persisted snapshot. Broadcast and
// persistence hooks are left nil for the caller to wire.
func RestoreEngine(snap Snapshot) *Engine {
	e := &Engine{
		ID:              snap.GameID,
		RoomCode:        snap.RoomCode,
		Round:           snap.Round,
		Phase:           snap.Phase,
		Players:         make(map[uuid.UUID]*PlayerState, len(snap.Players)),
		members:         append([]uuid.UUID(nil), snap.Members...),
		trickLeader:     snap.TrickLeader,
		lastRoundWinner: snap.LastRoundWinner,
		ready:           make(map[uuid.UUID]bool, len(snap.Ready)),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:          logrus.StandardLogger(),
	}
	for i := range snap.Players {
		p := snap.Players[i]
		cp := p
		cp.Hand = append([]models.HandCard(nil), p.Hand...)
		if p.PlayedCard != nil {
			c := *p.PlayedCard
			cp.PlayedCard = &c
		}
		e.Players[p.ID] = &cp
	}
	if len(snap.PlayOrder) > 0 {
		e.sched = RestoreScheduler(snap.PlayOrder, snap.TurnIndex)
	}
	for _, id := range snap.Ready {
		e.ready[id] = true
	}
	return e
}

// OpponentView is the obfuscated slice of another player's state: hand size
// only, bid revealed only once every bid is in.
type OpponentView struct {
	ID         uuid.UUID    `json:"id"`
	Name       string       `json:"name"`
	HandSize   int          `json:"handSize"`
	HasBid     bool         `json:"hasBid"`
	Bid        *int         `json:"bid,omitempty"`
	TricksWon  int          `json:"tricksWon"`
	PlayedCard *models.Card `json:"playedCard,omitempty"`
	Score      int          `json:"score"`
}

// RoomView is the resynchronization state returned to a reconnecting player:
// their own hand in full, opponents obfuscated.
type RoomView struct {
	RoomCode    string            `json:"roomCode"`
	Round       int               `json:"round"`
	Phase       Phase             `json:"phase"`
	YourHand    []models.HandCard `json:"yourHand,omitempty"`
	YourBid     *int              `json:"yourBid,omitempty"`
	YourTricks  int               `json:"yourTricks"`
	YourScore   int               `json:"yourScore"`
	Opponents   []OpponentView    `json:"opponents"`
	CurrentTurn uuid.UUID         `json:"currentTurn,omitempty"`
	TrickLeader uuid.UUID         `json:"trickLeader,omitempty"`
}

// View builds the room state from forPlayer's perspective.
func (e *Engine) View(forPlayer uuid.UUID) RoomView {
	e.Mu.Lock()
	defer e.Mu.Unlock()

	view := RoomView{
		RoomCode:    e.RoomCode,
		Round:       e.Round,
		Phase:       e.Phase,
		TrickLeader: e.trickLeader,
	}
	if e.Phase == PhaseTrickPlay && e.sched != nil {
		view.CurrentTurn = e.sched.Current()
	}
	bidsRevealed := e.Phase == PhaseTrickPlay || e.Phase == PhaseGameOver

	if self, ok := e.Players[forPlayer]; ok {
		view.YourHand = append([]models.HandCard(nil), self.Hand...)
		if self.Bid != bidUnset {
			b := self.Bid
			view.YourBid = &b
		}
		view.YourTricks = self.TricksWon
		view.YourScore = self.Score
	}

	for _, id := range e.members {
		if id == forPlayer {
			continue
		}
		p := e.Players[id]
		unplayed := 0
		for _, hc := range p.Hand {
			if !hc.Played {
				unplayed++
			}
		}
		ov := OpponentView{
			ID:        p.ID,
			Name:      p.Name,
			HandSize:  unplayed,
			HasBid:    p.Bid != bidUnset,
			TricksWon: p.TricksWon,
			Score:     p.Score,
		}
		if bidsRevealed && p.Bid != bidUnset {
			b := p.Bid
			ov.Bid = &b
		}
		if p.PlayedCard != nil {
			c := *p.PlayedCard
			ov.PlayedCard = &c
		}
		view.Opponents = append(view.Opponents, ov)
	}
	return view
}
