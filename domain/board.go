package domain

// BoardState maps every group to its ordered card sequence. A valid state
// always carries every group key, possibly with an empty sequence, and a
// card ID appears in at most one position across the whole state.
type BoardState map[Group][]Card

// NewBoardState returns an empty state with every group present.
func NewBoardState() BoardState {
	state := make(BoardState, len(Groups()))
	for _, g := range Groups() {
		state[g] = []Card{}
	}
	return state
}

// Clone deep-copies the state and fills in any missing group keys so the
// result is always a complete board.
func (s BoardState) Clone() BoardState {
	out := make(BoardState, len(Groups()))
	for _, g := range Groups() {
		cards := make([]Card, len(s[g]))
		copy(cards, s[g])
		out[g] = cards
	}
	return out
}

// Counts reports the per-group card count handed to the rendering layer.
func (s BoardState) Counts() map[Group]int {
	counts := make(map[Group]int, len(Groups()))
	for _, g := range Groups() {
		counts[g] = len(s[g])
	}
	return counts
}

// CardCount is the total number of cards on the board.
func (s BoardState) CardCount() int {
	n := 0
	for _, g := range Groups() {
		n += len(s[g])
	}
	return n
}
