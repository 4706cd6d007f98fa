package domain

// Transition is the closed vocabulary of board mutations. Exactly two
// kinds exist: wholesale replacement and single-group list replacement.
type Transition interface {
	isTransition()
}

// Replace installs a complete new board state.
type Replace struct {
	State BoardState
}

func (Replace) isTransition() {}

// UpdateGroup swaps one group's card sequence, leaving the rest untouched.
// The caller is responsible for keeping card IDs unique across the
// resulting state; the only producer of these instructions (the reorder
// engine) preserves that by construction.
type UpdateGroup struct {
	Group Group
	Cards []Card
}

func (UpdateGroup) isTransition() {}
