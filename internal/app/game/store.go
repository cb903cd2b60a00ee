package game

import "sync"

// Store holds the live games keyed by game ID. Implementations must make LoadOrStore an
// atomic insert-if-absent.
type Store interface {
	Load(id string) (*Game, bool)
	LoadOrStore(id string, g *Game) (actual *Game, loaded bool)
	CompareAndDelete(id string, g *Game) bool
	Range(fn func(id string, g *Game) bool)
	Len() int
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*Game
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]*Game)}
}

func (s *MemoryStore) Load(id string) (*Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	return g, ok
}

func (s *MemoryStore) LoadOrStore(id string, g *Game) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.games[id]; ok {
		return existing, true
	}
	s.games[id] = g
	return g, false
}

func (s *MemoryStore) CompareAndDelete(id string, g *Game) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.games[id] != g {
		return false
	}
	delete(s.games, id)
	return true
}

// Range calls fn for a snapshot of the stored games, stopping when fn returns false.
func (s *MemoryStore) Range(fn func(id string, g *Game) bool) {
	s.mu.RLock()
	snapshot := make(map[string]*Game, len(s.games))
	for id, g := range s.games {
		snapshot[id] = g
	}
	s.mu.RUnlock()

	for id, g := range snapshot {
		if !fn(id, g) {
			return
		}
	}
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.games)
}
