// internal/game/store.go
package game

import "sync"

// Store holds the live engines in memory, keyed by room code.
type Store struct {
	mu      sync.Mutex
	engines map[string]*Engine
}

func NewStore() *Store {
	return &Store{
		engines: make(map[string]*Engine),
	}
}

func (s *Store) Add(e *Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines[e.RoomCode] = e
}

func (s *Store) Get(roomCode string) (*Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[roomCode]
	return e, ok
}

func (s *Store) Delete(roomCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.engines, roomCode)
}
