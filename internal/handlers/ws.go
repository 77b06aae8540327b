// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tommasop/stima/internal/game"
	"github.com/tommasop/stima/internal/models"
	"github.com/tommasop/stima/internal/session"
)

// Message is the closed set of inbound client actions. Exactly the fields the
// Type requires must be present; anything malformed is rejected before it
// reaches the engine.
type Message struct {
	Type string `json:"type"`

	Name     string `json:"name,omitempty"`     // register
	Token    string `json:"token,omitempty"`    // reconnect
	RoomCode string `json:"roomCode,omitempty"` // join_room
	Capacity int    `json:"capacity,omitempty"` // create_room

	Bid *int `json:"bid,omitempty"` // place_bid

	Suit      string `json:"suit,omitempty"`      // play_card
	Rank      string `json:"rank,omitempty"`      // play_card
	HandIndex *int   `json:"handIndex,omitempty"` // play_card
}

// Response is the envelope for direct acknowledgements outside the game event
// stream (registration, room management, protocol errors).
type Response struct {
	Type     string     `json:"type"`
	Identity *uuid.UUID `json:"identity,omitempty"`
	Token    string     `json:"token,omitempty"`
	RoomCode string     `json:"roomCode,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

const writeTimeout = 3 * time.Second

// WSHandler upgrades the connection, pumps outbound frames, and feeds inbound
// messages to the dispatcher. Each connection starts anonymous; its first
// register or reconnect message binds it to a durable identity.
func WSHandler(logger *logrus.Logger, srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "game" {
			c.Close(websocket.StatusCode(BadSubprotocolError), "Client must use the 'game' subprotocol.")
			return
		}
		logger.Infof("WebSocket connection established from %s", r.RemoteAddr)

		out := session.NewOutbound()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go writePump(ctx, c, out, logger)

		sess := readMessages(ctx, c, srv, out, logger)
		if sess != nil {
			srv.Sessions.Disconnect(sess.ID, out)
			logger.Infof("connection for session %s closed", sess.ID)
		}
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// writePump drains the out queue onto the socket in order, one frame at a
// time. Ordering within a connection is therefore exactly enqueue order.
func writePump(ctx context.Context, c *websocket.Conn, out <-chan []byte, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-out:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("WebSocket write failed: %v", err)
				return
			}
		}
	}
}

// enqueue pushes a marshaled response onto a connection's out queue without
// blocking.
func enqueue(out chan<- []byte, v interface{}, logger *logrus.Logger) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("failed to marshal response: %v", err)
		return
	}
	select {
	case out <- data:
	default:
		logger.Warn("outbound queue full, dropping frame")
	}
}

// readMessages loops over inbound frames until the connection drops. It
// returns the session bound to the connection, if any, so the caller can start
// the disconnect grace window.
func readMessages(ctx context.Context, c *websocket.Conn, srv *Server, out chan []byte, logger *logrus.Logger) *session.Session {
	var sess *session.Session
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return sess
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			enqueue(out, Response{Type: "error", Reason: "malformed_message"}, logger)
			continue
		}
		sess = srv.HandleMessage(sess, out, msg)
	}
}

// HandleMessage dispatches one inbound action. It returns the session for the
// connection, which changes when a register or reconnect lands.
func (s *Server) HandleMessage(sess *session.Session, out chan []byte, msg Message) *session.Session {
	switch msg.Type {
	case "register":
		if msg.Name == "" {
			enqueue(out, Response{Type: "error", Reason: "malformed_message"}, s.Logger)
			return sess
		}
		newSess := s.Sessions.Register(msg.Name, out)
		token, err := session.CreateToken(newSess.ID)
		if err != nil {
			s.Logger.Errorf("token creation failed for %s: %v", newSess.ID, err)
		}
		id := newSess.ID
		enqueue(out, Response{Type: "registered", Identity: &id, Token: token}, s.Logger)
		return newSess

	case "reconnect":
		identity, err := session.VerifyToken(msg.Token)
		if err != nil {
			s.reject(out, models.ErrUnknownIdentity)
			return sess
		}
		newSess, err := s.Sessions.Reconnect(identity, out)
		if err != nil {
			s.reject(out, err)
			return sess
		}
		enqueue(out, Response{Type: "reconnected", Identity: &identity, RoomCode: newSess.RoomCode}, s.Logger)
		// Follow the ack with a full resync of the room the identity is
		// seated in, if a match is running there.
		if eng, ok := s.Games.Get(newSess.RoomCode); ok {
			view := eng.View(identity)
			enqueue(out, game.Event{Type: game.EventSyncState, State: &view}, s.Logger)
		}
		return newSess

	case "create_room":
		if sess == nil {
			s.reject(out, models.ErrUnknownIdentity)
			return sess
		}
		if sess.RoomCode != "" {
			s.reject(out, models.ErrStateDesync)
			return sess
		}
		r, err := s.Rooms.CreateRoom(sess.ID, msg.Capacity)
		if err != nil {
			s.reject(out, err)
			return sess
		}
		s.Sessions.SetRoom(sess.ID, r.Code)
		enqueue(out, Response{Type: "room_created", RoomCode: r.Code}, s.Logger)
		return sess

	case "join_room":
		if sess == nil {
			s.reject(out, models.ErrUnknownIdentity)
			return sess
		}
		r, err := s.Rooms.Join(msg.RoomCode, sess.ID)
		if err != nil {
			s.reject(out, err)
			return sess
		}
		s.Sessions.SetRoom(sess.ID, r.Code)
		enqueue(out, Response{Type: "room_joined", RoomCode: r.Code}, s.Logger)
		return sess

	case "leave_room":
		if sess == nil {
			s.reject(out, models.ErrUnknownIdentity)
			return sess
		}
		s.leaveRoom(sess)
		enqueue(out, Response{Type: "room_left"}, s.Logger)
		return sess

	case "ready":
		if eng, err := s.engineFor(sess, true); err != nil {
			s.reject(out, err)
		} else if err := eng.Ready(sess.ID); err != nil {
			s.reject(out, err)
		}
		return sess

	case "place_bid":
		if msg.Bid == nil || *msg.Bid < 0 {
			enqueue(out, Response{Type: "error", Reason: "malformed_message"}, s.Logger)
			return sess
		}
		if eng, err := s.engineFor(sess, false); err != nil {
			s.reject(out, err)
		} else if err := eng.PlaceBid(sess.ID, *msg.Bid); err != nil {
			s.reject(out, err)
		}
		return sess

	case "play_card":
		card := models.Card{Suit: models.Suit(msg.Suit), Rank: models.Rank(msg.Rank)}
		if msg.HandIndex == nil || !card.Valid() {
			enqueue(out, Response{Type: "error", Reason: "malformed_message"}, s.Logger)
			return sess
		}
		if eng, err := s.engineFor(sess, false); err != nil {
			s.reject(out, err)
		} else if err := eng.PlayCard(sess.ID, card, *msg.HandIndex); err != nil {
			s.reject(out, err)
		}
		return sess

	default:
		enqueue(out, Response{Type: "error", Reason: "malformed_message"}, s.Logger)
		return sess
	}
}

// engineFor resolves the acting session's room to its engine. When create is
// set, a missing engine is built lazily once the room is full (the first
// ready request of a match).
func (s *Server) engineFor(sess *session.Session, create bool) (*game.Engine, error) {
	if sess == nil {
		return nil, models.ErrUnknownIdentity
	}
	if sess.RoomCode == "" {
		return nil, models.ErrRoomNotFound
	}
	r, ok := s.Rooms.Get(sess.RoomCode)
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if create {
		return s.ensureEngine(r)
	}
	eng, ok := s.Games.Get(r.Code)
	if !ok {
		return nil, models.ErrStateDesync
	}
	return eng, nil
}

// leaveRoom removes the session from its room immediately (no grace window)
// and tears the room down if it emptied.
func (s *Server) leaveRoom(sess *session.Session) {
	code := sess.RoomCode
	if code == "" {
		return
	}
	s.Sessions.ClearRoom(sess.ID)
	r, destroyed := s.Rooms.Leave(code, sess.ID)
	if r == nil {
		return
	}
	if eng, ok := s.Games.Get(code); ok {
		eng.RemovePlayer(sess.ID)
	}
	if destroyed {
		s.teardownRoom(code)
		return
	}
	actor := sess.ID
	s.broadcastToRoom(code, game.Event{Type: game.EventPlayerLeft, Actor: &actor})
}

// reject sends an action_rejected event carrying the taxonomy kind; unexpected
// errors degrade to state_desync rather than leaking internals.
func (s *Server) reject(out chan<- []byte, err error) {
	kind, ok := models.RejectKind(err)
	if !ok {
		s.Logger.Errorf("unexpected action error: %v", err)
		kind = models.ErrStateDesync.Kind
	}
	enqueue(out, game.Event{Type: game.EventActionRejected, Reason: kind}, s.Logger)
}
