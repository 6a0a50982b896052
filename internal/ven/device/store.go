package device

import "sync"

// Store serializes every access to one State.
type Store struct {
	mu    sync.Mutex
	state *State
}

// NewStore takes ownership of state.
func NewStore(state *State) *Store {
	return &Store{state: state}
}

// Update runs fn with exclusive access to the state. If fn returns an error
// every change it made is discarded, so readers never observe a half-applied
// mutation. fn must not block on I/O.
func (s *Store) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.state.clone()
	if err := fn(s.state); err != nil {
		s.state = backup
		return err
	}
	return nil
}

// View runs fn with exclusive access to the state. fn must not modify it.
func (s *Store) View(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}
