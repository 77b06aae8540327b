// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tommasop/stima/internal/archive"
	"github.com/tommasop/stima/internal/cache"
	"github.com/tommasop/stima/internal/game"
	"github.com/tommasop/stima/internal/models"
	"github.com/tommasop/stima/internal/room"
	"github.com/tommasop/stima/internal/session"
)

// Server owns the registries and live engines and routes every inbound player
// action to the room it belongs to.
type Server struct {
	Logger   *logrus.Logger
	Sessions *session.Registry
	Rooms    *room.Registry
	Games    *game.Store
}

func NewServer(logger *logrus.Logger, sessions *session.Registry) *Server {
	s := &Server{
		Logger:   logger,
		Sessions: sessions,
		Rooms:    room.NewRegistry(),
		Games:    game.NewStore(),
	}
	sessions.OnPurge = s.handlePurge
	return s
}

// sendEvent marshals an event and enqueues it for one identity.
func (s *Server) sendEvent(id uuid.UUID, ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.Logger.Errorf("failed to marshal event %s: %v", ev.Type, err)
		return
	}
	s.Sessions.Send(id, data)
}

// broadcastToRoom marshals an event once and enqueues it for every current
// member of the room. Enqueueing never blocks, so this is safe to call from
// engine hooks that run with the engine lock held.
func (s *Server) broadcastToRoom(roomCode string, ev game.Event) {
	r, ok := s.Rooms.Get(roomCode)
	if !ok {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		s.Logger.Errorf("failed to marshal event %s for room %s: %v", ev.Type, roomCode, err)
		return
	}
	for _, id := range r.Members {
		s.Sessions.Send(id, data)
	}
}

// ensureEngine returns the room's engine, creating it on the first start
// request once the room is at capacity.
func (s *Server) ensureEngine(r *room.Room) (*game.Engine, error) {
	if eng, ok := s.Games.Get(r.Code); ok {
		return eng, nil
	}
	if !r.Full() {
		return nil, models.ErrStateDesync
	}
	eng := s.resumedEngine(r)
	if eng == nil {
		names := make(map[uuid.UUID]string, len(r.Members))
		for _, id := range r.Members {
			names[id] = s.Sessions.Name(id)
		}
		eng = game.NewEngine(r.Code, r.Members, names)
	}
	eng.Logger = s.Logger
	eng.BroadcastFn = func(ev game.Event) {
		s.broadcastToRoom(r.Code, ev)
	}
	eng.BroadcastToPlayerFn = func(playerID uuid.UUID, ev game.Event) {
		s.sendEvent(playerID, ev)
	}
	eng.SnapshotFn = func(snap game.Snapshot) {
		go s.persistSnapshot(snap)
	}
	eng.OnGameEnd = func(gameID uuid.UUID, roomCode string, scores map[uuid.UUID]int, winners []uuid.UUID) {
		go s.recordMatch(gameID, roomCode, scores, winners)
	}
	s.Games.Add(eng)
	s.Logger.Infof("engine created for room %s with %d players", r.Code, len(r.Members))
	return eng, nil
}

// resumedEngine rebuilds a persisted match for the room code, if one exists
// and its membership matches the current occupants exactly. A stale snapshot
// left behind by a recycled code is ignored.
func (s *Server) resumedEngine(r *room.Room) *game.Engine {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	snap, err := cache.LoadSnapshot(ctx, r.Code)
	if err != nil {
		s.Logger.Warnf("snapshot load failed for room %s: %v", r.Code, err)
		return nil
	}
	if snap == nil || len(snap.Members) != len(r.Members) {
		return nil
	}
	current := make(map[uuid.UUID]bool, len(r.Members))
	for _, id := range r.Members {
		current[id] = true
	}
	for _, id := range snap.Members {
		if !current[id] {
			return nil
		}
	}
	s.Logger.Infof("room %s resumed from snapshot at round %d", r.Code, snap.Round)
	return game.RestoreEngine(*snap)
}

// persistSnapshot is fire-and-forget: a failed write is logged and forgotten,
// the in-memory state stays authoritative.
func (s *Server) persistSnapshot(snap game.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cache.SaveSnapshot(ctx, snap); err != nil {
		s.Logger.Warnf("snapshot save failed for room %s: %v", snap.RoomCode, err)
	}
}

// recordMatch archives a finished game in the background.
func (s *Server) recordMatch(gameID uuid.UUID, roomCode string, scores map[uuid.UUID]int, winners []uuid.UUID) {
	if !archive.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.RecordMatch(ctx, gameID, roomCode, scores, winners); err != nil {
		s.Logger.Warnf("match archive failed for room %s: %v", roomCode, err)
	}
}

// handlePurge runs when a disconnect-grace window elapses: the identity is
// evicted from its room, the remaining occupants are notified, and an emptied
// room is destroyed.
func (s *Server) handlePurge(identity uuid.UUID, roomCode string) {
	if roomCode == "" {
		return
	}
	r, destroyed := s.Rooms.Leave(roomCode, identity)
	if r == nil {
		return
	}
	if eng, ok := s.Games.Get(roomCode); ok {
		eng.RemovePlayer(identity)
	}
	if destroyed {
		s.teardownRoom(roomCode)
		return
	}
	actor := identity
	s.broadcastToRoom(roomCode, game.Event{Type: game.EventOpponentDisconnected, Actor: &actor})
}

// teardownRoom drops the engine and the persisted snapshot of a destroyed room.
func (s *Server) teardownRoom(roomCode string) {
	s.Games.Delete(roomCode)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := cache.DeleteSnapshot(ctx, roomCode); err != nil {
			s.Logger.Warnf("snapshot delete failed for room %s: %v", roomCode, err)
		}
	}()
	s.Logger.Infof("room %s destroyed", roomCode)
}
