// internal/session/registry.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tommasop/stima/internal/models"
)

// DefaultGracePeriod bounds how long a disconnected identity keeps its room
// membership and state while waiting for a reconnect.
const DefaultGracePeriod = 60 * time.Second

// outboundBuffer is the per-connection send queue depth. A client that cannot
// drain this many events loses the excess rather than stalling the room.
const outboundBuffer = 64

// Session is a durable player identity bound to the current transient
// connection. The identity outlives any single WebSocket: on disconnect it
// enters the grace window, and a reconnect rebinds it to a fresh out queue.
type Session struct {
	ID        uuid.UUID
	Name      string
	RoomCode  string // empty when not seated in a room
	Connected bool

	out        chan<- []byte
	graceTimer *time.Timer
}

// OnPurgeFunc is called once a grace window elapses without reconnect, after
// the identity has been removed from the registry.
type OnPurgeFunc func(identity uuid.UUID, roomCode string)

// Registry maps durable identities to sessions and owns the disconnect-grace
// timers.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	grace    time.Duration
	logger   *logrus.Logger

	// OnPurge is wired by the server to evict the identity from its room and
	// notify the remaining occupants.
	OnPurge OnPurgeFunc
}

func NewRegistry(grace time.Duration, logger *logrus.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		grace:    grace,
		logger:   logger,
	}
}

// NewOutbound allocates a send queue for a fresh connection.
func NewOutbound() chan []byte {
	return make(chan []byte, outboundBuffer)
}

// Register creates a durable identity bound to the given out queue.
func (reg *Registry) Register(name string, out chan<- []byte) *Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	s := &Session{
		ID:        uuid.New(),
		Name:      name,
		Connected: true,
		out:       out,
	}
	reg.sessions[s.ID] = s
	reg.logger.Infof("session %s registered as %q", s.ID, name)
	return s
}

// Reconnect rebinds an identity to a new connection, canceling any pending
// grace timer. Identities already purged fail with UnknownIdentity and must
// register afresh.
func (reg *Registry) Reconnect(id uuid.UUID, out chan<- []byte) (*Session, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	s, ok := reg.sessions[id]
	if !ok {
		return nil, models.ErrUnknownIdentity
	}
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.Connected = true
	s.out = out
	reg.logger.Infof("session %s reconnected", id)
	return s, nil
}

// Disconnect marks the identity as gone and starts the grace timer. If no
// reconnect lands before expiry, the identity is purged and OnPurge fires
// exactly once. A connection may only tear down the binding it owns: when the
// identity has already rebound to a fresh out queue, a late disconnect from
// the old connection is stale and ignored.
func (reg *Registry) Disconnect(id uuid.UUID, out chan<- []byte) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	s, ok := reg.sessions[id]
	if !ok || !s.Connected {
		return
	}
	if s.out != out {
		return
	}
	s.Connected = false
	s.out = nil
	reg.logger.Infof("session %s disconnected, grace window %s", id, reg.grace)

	s.graceTimer = time.AfterFunc(reg.grace, func() {
		reg.expire(id)
	})
}

// expire purges an identity whose grace window elapsed. A reconnect that
// landed after the timer fired but before this ran wins the race and keeps
// the session.
func (reg *Registry) expire(id uuid.UUID) {
	reg.mu.Lock()
	s, ok := reg.sessions[id]
	if !ok || s.Connected {
		reg.mu.Unlock()
		return
	}
	roomCode := s.RoomCode
	delete(reg.sessions, id)
	reg.mu.Unlock()

	reg.logger.Infof("session %s purged after grace window", id)
	if reg.OnPurge != nil {
		reg.OnPurge(id, roomCode)
	}
}

// Get returns the session for an identity.
func (reg *Registry) Get(id uuid.UUID) (*Session, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	s, ok := reg.sessions[id]
	return s, ok
}

// SetRoom records which room the identity is seated in.
func (reg *Registry) SetRoom(id uuid.UUID, roomCode string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if s, ok := reg.sessions[id]; ok {
		s.RoomCode = roomCode
	}
}

// ClearRoom drops the identity's room association.
func (reg *Registry) ClearRoom(id uuid.UUID) {
	reg.SetRoom(id, "")
}

// Name returns the display name for an identity, empty if unknown.
func (reg *Registry) Name(id uuid.UUID) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if s, ok := reg.sessions[id]; ok {
		return s.Name
	}
	return ""
}

// Send enqueues a frame for the identity's current connection. Frames for
// disconnected identities, or beyond the queue depth, are dropped; the sender
// never blocks on a slow client.
func (reg *Registry) Send(id uuid.UUID, data []byte) {
	reg.mu.Lock()
	s, ok := reg.sessions[id]
	if !ok || !s.Connected || s.out == nil {
		reg.mu.Unlock()
		return
	}
	out := s.out
	reg.mu.Unlock()

	select {
	case out <- data:
	default:
		reg.logger.Warnf("session %s send queue full, dropping frame", id)
	}
}
