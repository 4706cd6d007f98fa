// Package board owns the in-memory board state engine: the state cell,
// payload normalization and drag move computation.
package board

import (
	"sync"

	"insight-board/domain"
)

// Store holds one board state. Replace and UpdateGroup are the only
// mutations; each is applied as a single indivisible step so observers
// see either the old or the new state, never a mix. Handlers run on
// multiple goroutines, so the cell is mutex-guarded.
type Store struct {
	mu    sync.RWMutex
	state domain.BoardState
}

// NewStore creates a store holding an empty board.
func NewStore() *Store {
	return &Store{state: domain.NewBoardState()}
}

// Replace discards the current state and installs next.
func (s *Store) Replace(next domain.BoardState) {
	cloned := next.Clone()
	s.mu.Lock()
	s.state = cloned
	s.mu.Unlock()
}

// UpdateGroup swaps one group's sequence, leaving all other groups alone.
func (s *Store) UpdateGroup(g domain.Group, cards []domain.Card) {
	if _, ok := domain.ParseGroup(string(g)); !ok {
		return
	}
	copied := make([]domain.Card, len(cards))
	copy(copied, cards)
	s.mu.Lock()
	s.state[g] = copied
	s.mu.Unlock()
}

// Apply dispatches a transition to the matching operation. The transition
// vocabulary is closed, so anything else is ignored.
func (s *Store) Apply(t domain.Transition) {
	switch t := t.(type) {
	case domain.Replace:
		s.Replace(t.State)
	case domain.UpdateGroup:
		s.UpdateGroup(t.Group, t.Cards)
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() domain.BoardState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Counts reports per-group card counts from the current state.
func (s *Store) Counts() map[domain.Group]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Counts()
}
