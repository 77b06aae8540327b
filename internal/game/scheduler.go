// internal/game/scheduler.go
package game

import "github.com/google/uuid"

// Scheduler tracks whose action is currently legal within a trick. It owns the
// play order (room members rotated so the trick leader acts first) and the
// current turn index; the engine consults it before mutating any state.
type Scheduler struct {
	order []uuid.UUID
	turn  int
}

// NewScheduler builds a scheduler over the given members, rotated so that
// leader plays first. If leader is not a member, the order is used as given.
func NewScheduler(members []uuid.UUID, leader uuid.UUID) *Scheduler {
	s := &Scheduler{order: append([]uuid.UUID(nil), members...)}
	s.Rebase(leader)
	return s
}

// Current returns the identity whose action is legal right now.
func (s *Scheduler) Current() uuid.UUID {
	return s.order[s.turn]
}

// IsLegalActor reports whether id is the designated current player.
func (s *Scheduler) IsLegalActor(id uuid.UUID) bool {
	return s.order[s.turn] == id
}

// Advance moves the turn pointer to the next player in play order. It returns
// true when the pointer wraps back to the leader, i.e. every player has acted
// and the trick is complete.
func (s *Scheduler) Advance() bool {
	s.turn = (s.turn + 1) % len(s.order)
	return s.turn == 0
}

// Rebase rotates the play order so that leader acts first and resets the turn
// pointer. Called between tricks with the previous trick's winner.
func (s *Scheduler) Rebase(leader uuid.UUID) {
	for i, id := range s.order {
		if id == leader {
			s.order = append(s.order[i:], s.order[:i]...)
			break
		}
	}
	s.turn = 0
}

// Order returns the play order for the current trick, leader first.
func (s *Scheduler) Order() []uuid.UUID {
	return append([]uuid.UUID(nil), s.order...)
}

// TurnIndex returns the current position in the play order.
func (s *Scheduler) TurnIndex() int {
	return s.turn
}

// RestoreScheduler rebuilds a scheduler from a persisted play order and turn
// index.
func RestoreScheduler(order []uuid.UUID, turn int) *Scheduler {
	return &Scheduler{order: append([]uuid.UUID(nil), order...), turn: turn}
}
