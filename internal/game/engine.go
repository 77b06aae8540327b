// internal/game/engine.go
package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tommasop/stima/internal/models"
)

// RoundCap is the fixed number of rounds in a game.
const RoundCap = 10

// bidUnset marks a bid that has not been declared yet.
const bidUnset = -1

// Phase is the engine's current state-machine phase. Dealing and Settlement
// are synchronous transitions and never observed between actions.
type Phase string

const (
	PhaseAwaitingStart Phase = "awaiting_start"
	PhaseBidding       Phase = "bidding"
	PhaseTrickPlay     Phase = "trick_play"
	PhaseGameOver      Phase = "game_over"
)

// OnGameEndFunc receives the final cumulative scores once the round cap is hit.
type OnGameEndFunc func(gameID uuid.UUID, roomCode string, scores map[uuid.UUID]int, winners []uuid.UUID)

// PlayerState is the per-player slice of a round: the dealt hand, the declared
// bid, trick bookkeeping, and the cumulative score that persists across rounds.
type PlayerState struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Hand       []models.HandCard `json:"hand"`
	Bid        int               `json:"bid"`
	TricksWon  int               `json:"tricksWon"`
	PlayedCard *models.Card      `json:"playedCard,omitempty"`
	Score      int               `json:"score"`
}

// Engine is the per-room round/trick state machine. All mutation goes through
// its methods; Mu serializes the actions of a single room while distinct rooms
// proceed independently.
type Engine struct {
	ID       uuid.UUID
	RoomCode string

	Round   int // 1-based once dealt; 0 before the first round
	Phase   Phase
	Players map[uuid.UUID]*PlayerState

	members         []uuid.UUID // room membership in seating order
	sched           *Scheduler
	trickLeader     uuid.UUID
	lastRoundWinner uuid.UUID // uuid.Nil when no clear winner yet
	ready           map[uuid.UUID]bool

	rng *rand.Rand
	Mu  sync.Mutex

	Logger *logrus.Logger

	// BroadcastFn sends an event to every member. BroadcastToPlayerFn sends to
	// one member. Both are invoked with Mu held; implementations must only
	// enqueue and never block on network I/O.
	BroadcastFn         func(ev Event)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev Event)

	// SnapshotFn is handed the post-transition state after every accepted
	// action. Implementations persist it in the background; failures never
	// reach the engine.
	SnapshotFn func(snap Snapshot)

	// OnGameEnd is invoked once, after the game_over broadcast.
	OnGameEnd OnGameEndFunc
}

// NewEngine builds an engine for a full room. Members are kept in seating
// order; the play order of each trick is a rotation of it.
func NewEngine(roomCode string, members []uuid.UUID, names map[uuid.UUID]string) *Engine {
	e := &Engine{
		ID:       uuid.New(),
		RoomCode: roomCode,
		Phase:    PhaseAwaitingStart,
		Players:  make(map[uuid.UUID]*PlayerState, len(members)),
		members:  append([]uuid.UUID(nil), members...),
		ready:    make(map[uuid.UUID]bool, len(members)),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:   logrus.StandardLogger(),
	}
	for _, id := range members {
		e.Players[id] = &PlayerState{ID: id, Name: names[id], Bid: bidUnset}
	}
	return e
}

// Ready records a member's readiness for the next round. Dealing starts once
// every member has signaled.
func (e *Engine) Ready(playerID uuid.UUID) error {
	e.Mu.Lock()
	defer e.Mu.Unlock()

	if _, ok := e.Players[playerID]; !ok {
		return models.ErrUnknownIdentity
	}
	if e.Phase != PhaseAwaitingStart {
		return models.ErrStateDesync
	}
	e.ready[playerID] = true
	if len(e.ready) < len(e.members) {
		return nil
	}
	e.startRound()
	return nil
}

// startRound deals round N and opens bidding. Assumes Mu is held.
func (e *Engine) startRound() {
	e.Round++
	e.ready = make(map[uuid.UUID]bool, len(e.members))

	deck := models.NewDeck()
	e.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	next := 0
	for _, id := range e.members {
		p := e.Players[id]
		p.Hand = make([]models.HandCard, 0, e.Round)
		for i := 0; i < e.Round; i++ {
			p.Hand = append(p.Hand, models.HandCard{Card: deck[next]})
			next++
		}
		p.Bid = bidUnset
		p.TricksWon = 0
		p.PlayedCard = nil
	}
	// The remainder of the deck is discarded, never reused this round.

	leader := e.lastRoundWinner
	if leader == uuid.Nil {
		leader = e.members[e.rng.Intn(len(e.members))]
	}
	e.trickLeader = leader
	e.sched = NewScheduler(e.members, leader)
	e.Phase = PhaseBidding

	e.Logger.Infof("room %s: round %d dealt, leader %s", e.RoomCode, e.Round, leader)

	for _, id := range e.members {
		p := e.Players[id]
		hand := make([]models.Card, len(p.Hand))
		for i, hc := range p.Hand {
			hand[i] = hc.Card
		}
		opponents := make(map[uuid.UUID]string, len(e.members)-1)
		for _, other := range e.members {
			if other != id {
				opponents[other] = e.Players[other].Name
			}
		}
		ldr := leader
		e.fireEventToPlayer(id, Event{
			Type:      EventRoundStarted,
			Round:     e.Round,
			Hand:      hand,
			Leader:    &ldr,
			Opponents: opponents,
		})
	}
	e.snapshot()
}

// PlaceBid records a member's bid for the current round. Declaration order is
// unconstrained; once every member has declared, all bids are revealed and
// trick play begins.
func (e *Engine) PlaceBid(playerID uuid.UUID, bid int) error {
	e.Mu.Lock()
	defer e.Mu.Unlock()

	p, ok := e.Players[playerID]
	if !ok {
		return models.ErrUnknownIdentity
	}
	if e.Phase != PhaseBidding {
		return models.ErrStateDesync
	}
	if p.Bid != bidUnset {
		return models.ErrAlreadyPlayed
	}
	p.Bid = bid

	actor := playerID
	e.fireEvent(Event{Type: EventBidRecorded, Actor: &actor})

	for _, id := range e.members {
		if e.Players[id].Bid == bidUnset {
			return nil
		}
	}

	bids := make(map[uuid.UUID]int, len(e.members))
	for _, id := range e.members {
		bids[id] = e.Players[id].Bid
	}
	e.Phase = PhaseTrickPlay
	e.fireEvent(Event{Type: EventAllBidsRecorded, Bids: bids})
	e.snapshot()
	return nil
}

// PlayCard plays the card claimed at handIndex for the acting player. The
// claim must match the stored card exactly, the card must be unplayed, and the
// actor must be the scheduler's current player. A rejected play leaves all
// state untouched.
func (e *Engine) PlayCard(playerID uuid.UUID, card models.Card, handIndex int) error {
	e.Mu.Lock()
	defer e.Mu.Unlock()

	p, ok := e.Players[playerID]
	if !ok {
		return models.ErrUnknownIdentity
	}
	if e.Phase != PhaseTrickPlay {
		return models.ErrStateDesync
	}
	if !e.sched.IsLegalActor(playerID) {
		return models.ErrNotYourTurn
	}
	if handIndex < 0 || handIndex >= len(p.Hand) {
		return models.ErrIllegalCard
	}
	hc := &p.Hand[handIndex]
	if hc.Card != card {
		return models.ErrIllegalCard
	}
	if hc.Played {
		return models.ErrAlreadyPlayed
	}

	hc.Played = true
	played := hc.Card
	p.PlayedCard = &played

	actor := playerID
	e.fireEvent(Event{Type: EventCardAccepted, Actor: &actor, Card: &played})

	if e.sched.Advance() {
		e.resolveTrick()
	}
	e.snapshot()
	return nil
}

// resolveTrick finds the undominated card among the plays of the completed
// trick, credits its owner, and rebases the scheduler on the winner. Assumes
// Mu is held.
func (e *Engine) resolveTrick() {
	order := e.sched.Order()
	plays := make([]PlayedCard, 0, len(order))
	winner := order[0]
	best := *e.Players[winner].PlayedCard
	for _, id := range order {
		c := *e.Players[id].PlayedCard
		plays = append(plays, PlayedCard{Player: id, Card: c})
		if c.Beats(best) {
			best = c
			winner = id
		}
	}

	e.Players[winner].TricksWon++
	for _, id := range order {
		e.Players[id].PlayedCard = nil
	}
	e.trickLeader = winner
	e.sched.Rebase(winner)

	win := winner
	e.fireEvent(Event{Type: EventTrickResolved, Actor: &win, Played: plays})

	for _, id := range e.members {
		for _, hc := range e.Players[id].Hand {
			if !hc.Played {
				return
			}
		}
	}
	// All hands exhausted simultaneously after N tricks.
	e.settle()
}

// settle applies the scoring policy, determines the round winner, broadcasts
// the results, and either re-arms for the next round or ends the game.
// Assumes Mu is held.
func (e *Engine) settle() {
	deltas := make(map[uuid.UUID]int, len(e.members))
	scores := make(map[uuid.UUID]int, len(e.members))
	bids := make(map[uuid.UUID]int, len(e.members))
	tricks := make(map[uuid.UUID]int, len(e.members))

	for _, id := range e.members {
		p := e.Players[id]
		d := RoundDelta(p.TricksWon, p.Bid)
		p.Score += d
		deltas[id] = d
		scores[id] = p.Score
		bids[id] = p.Bid
		tricks[id] = p.TricksWon
	}

	// Most tricks wins the round; a tie leaves no clear winner and the next
	// round's leader falls back to random selection.
	e.lastRoundWinner = uuid.Nil
	bestTricks := -1
	tied := false
	for _, id := range e.members {
		tw := e.Players[id].TricksWon
		if tw > bestTricks {
			bestTricks = tw
			e.lastRoundWinner = id
			tied = false
		} else if tw == bestTricks {
			tied = true
		}
	}
	if tied {
		e.lastRoundWinner = uuid.Nil
	}

	ev := Event{Type: EventRoundFinished, Round: e.Round, Deltas: deltas, Scores: scores, Bids: bids, Tricks: tricks}
	if e.lastRoundWinner != uuid.Nil {
		ldr := e.lastRoundWinner
		ev.Leader = &ldr
	}
	e.fireEvent(ev)
	e.Logger.Infof("room %s: round %d settled, deltas %v", e.RoomCode, e.Round, deltas)

	if e.Round >= RoundCap {
		e.endGame(scores)
		return
	}

	for _, id := range e.members {
		p := e.Players[id]
		p.Hand = nil
		p.Bid = bidUnset
		p.TricksWon = 0
	}
	e.Phase = PhaseAwaitingStart
}

// endGame broadcasts the final standings and freezes the engine. Assumes Mu is
// held.
func (e *Engine) endGame(scores map[uuid.UUID]int) {
	winners := GameWinners(scores)
	e.Phase = PhaseGameOver
	e.sched = nil
	e.fireEvent(Event{Type: EventGameOver, Scores: scores, Winners: winners})
	e.Logger.Infof("room %s: game over after round %d, winners %v", e.RoomCode, e.Round, winners)
	if e.OnGameEnd != nil {
		e.OnGameEnd(e.ID, e.RoomCode, scores, winners)
	}
}

// RemovePlayer drops a purged identity from the engine. With fewer than two
// players left the game cannot continue and ends on current scores; otherwise
// any round in flight is abandoned back to AwaitingStart with cumulative
// scores intact.
func (e *Engine) RemovePlayer(playerID uuid.UUID) {
	e.Mu.Lock()
	defer e.Mu.Unlock()

	if _, ok := e.Players[playerID]; !ok {
		return
	}
	delete(e.Players, playerID)
	delete(e.ready, playerID)
	for i, id := range e.members {
		if id == playerID {
			e.members = append(e.members[:i], e.members[i+1:]...)
			break
		}
	}

	if e.Phase == PhaseGameOver {
		return
	}

	if len(e.members) < 2 {
		scores := make(map[uuid.UUID]int, len(e.members))
		for _, id := range e.members {
			scores[id] = e.Players[id].Score
		}
		e.endGame(scores)
		return
	}

	if e.Phase != PhaseAwaitingStart {
		for _, id := range e.members {
			p := e.Players[id]
			p.Hand = nil
			p.Bid = bidUnset
			p.TricksWon = 0
			p.PlayedCard = nil
		}
		e.sched = nil
		e.Phase = PhaseAwaitingStart
		e.ready = make(map[uuid.UUID]bool, len(e.members))
	}
	e.snapshot()
}

// CurrentTurn returns the identity whose play is legal right now, or uuid.Nil
// outside trick play.
func (e *Engine) CurrentTurn() uuid.UUID {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if e.Phase != PhaseTrickPlay || e.sched == nil {
		return uuid.Nil
	}
	return e.sched.Current()
}

// fireEvent broadcasts to every member. Assumes Mu is held.
func (e *Engine) fireEvent(ev Event) {
	if e.BroadcastFn != nil {
		e.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends to a single member. Assumes Mu is held.
func (e *Engine) fireEventToPlayer(playerID uuid.UUID, ev Event) {
	if e.BroadcastToPlayerFn != nil {
		e.BroadcastToPlayerFn(playerID, ev)
	}
}

// snapshot hands the current state to the persistence hook. Assumes Mu is
// held; the hook must not block.
func (e *Engine) snapshot() {
	if e.SnapshotFn != nil {
		e.SnapshotFn(e.snapshotLocked())
	}
}
