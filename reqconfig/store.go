package reqconfig

import "sync"

// Store holds a mutable default configuration shared by a client
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore creates a store seeded with base
func NewStore(base Config) *Store {
	return &Store{cfg: base.Clone()}
}

// Set applies p onto the stored defaults
func (s *Store) Set(p Partial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	Set(&s.cfg, p)
}

// Get returns the defaults merged with p. The stored defaults are not modified.
func (s *Store) Get(p Partial) Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Merge(s.cfg, p)
}

// Default returns a copy of the stored defaults
func (s *Store) Default() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}
