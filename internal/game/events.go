// internal/game/events.go
package game

import (
	"github.com/google/uuid"

	"github.com/tommasop/stima/internal/models"
)

// EventType tags an outbound event.
type EventType string

const (
	EventRoundStarted    EventType = "round_started"     // private: hand + leader + opponents
	EventBidRecorded     EventType = "bid_recorded"      // public: a bid landed (value hidden)
	EventAllBidsRecorded EventType = "all_bids_recorded" // public: every bid, trick play begins
	EventCardAccepted    EventType = "card_accepted"     // public: a legal play
	EventTrickResolved   EventType = "trick_resolved"    // public: trick winner + cards played
	EventRoundFinished   EventType = "round_finished"    // public: settlement results
	EventGameOver        EventType = "game_over"         // public: final cumulative scores
	EventActionRejected  EventType = "action_rejected"   // private: rejection kind
	EventSyncState       EventType = "sync_state"        // private: full resync after reconnect

	EventOpponentDisconnected EventType = "opponent_disconnected" // public: identity purged after the grace window
	EventPlayerLeft           EventType = "player_left"           // public: identity left the room explicitly
)

// PlayedCard pairs a resolved trick card with the identity who played it.
type PlayedCard struct {
	Player uuid.UUID   `json:"player"`
	Card   models.Card `json:"card"`
}

// Event is the closed envelope broadcast to clients. Exactly the fields
// relevant to the Type are set; everything else is omitted from the JSON.
type Event struct {
	Type EventType `json:"type"`

	Actor  *uuid.UUID   `json:"actor,omitempty"`
	Card   *models.Card `json:"card,omitempty"`
	Round  int          `json:"round,omitempty"`
	Leader *uuid.UUID   `json:"leader,omitempty"`

	// Hand and Opponents are private to the receiving player (round_started).
	Hand      []models.Card        `json:"hand,omitempty"`
	Opponents map[uuid.UUID]string `json:"opponents,omitempty"`

	Bids   map[uuid.UUID]int `json:"bids,omitempty"`
	Played []PlayedCard      `json:"played,omitempty"`

	// Settlement fields (round_finished, game_over).
	Deltas  map[uuid.UUID]int `json:"deltas,omitempty"`
	Scores  map[uuid.UUID]int `json:"scores,omitempty"`
	Tricks  map[uuid.UUID]int `json:"tricks,omitempty"`
	Winners []uuid.UUID       `json:"winners,omitempty"`

	Reason string    `json:"reason,omitempty"`
	State  *RoomView `json:"state,omitempty"`
}
