// internal/room/registry.go
package room

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tommasop/stima/internal/models"
)

// MaxCapacity is bounded by the deck: the final round deals RoundCap cards to
// every player out of 40.
const MaxCapacity = 4

// codeAlphabet omits the characters easily misread over voice or in a hurry.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 5

// Room is a pure membership container: an ordered list of identities under a
// short human-typable code. Game logic never lives here.
type Room struct {
	Code     string
	Capacity int
	Members  []uuid.UUID // seating order, owner first
}

// Full reports whether membership has reached capacity, making the room
// eligible for round start.
func (r *Room) Full() bool {
	return len(r.Members) >= r.Capacity
}

// Registry tracks the live rooms in memory.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	rng   *rand.Rand
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateRoom allocates a room with a code unique among live rooms and seats
// the owner first.
func (reg *Registry) CreateRoom(owner uuid.UUID, capacity int) (*Room, error) {
	if capacity < 2 || capacity > MaxCapacity {
		return nil, models.ErrCapacityInvalid
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := reg.newCode()
	r := &Room{
		Code:     code,
		Capacity: capacity,
		Members:  []uuid.UUID{owner},
	}
	reg.rooms[code] = r
	return r, nil
}

// Join seats an identity in the room. Joining a room you are already in is a
// no-op.
func (reg *Registry) Join(code string, id uuid.UUID) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[code]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	for _, m := range r.Members {
		if m == id {
			return r, nil
		}
	}
	if r.Full() {
		return nil, models.ErrRoomFull
	}
	r.Members = append(r.Members, id)
	return r, nil
}

// Leave removes an identity from the room. The room is destroyed once its last
// member leaves; the second return reports destruction.
func (reg *Registry) Leave(code string, id uuid.UUID) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[code]
	if !ok {
		return nil, false
	}
	for i, m := range r.Members {
		if m == id {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			break
		}
	}
	if len(r.Members) == 0 {
		delete(reg.rooms, code)
		return r, true
	}
	return r, false
}

// Get returns a live room by code.
func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[code]
	return r, ok
}

// newCode draws codes until one misses the live set. Assumes mu is held.
func (reg *Registry) newCode() string {
	buf := make([]byte, codeLength)
	for {
		for i := range buf {
			buf[i] = codeAlphabet[reg.rng.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := reg.rooms[code]; !taken {
			return code
		}
	}
}
