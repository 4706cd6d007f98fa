package board

import "insight-board/domain"

// ComputeMove turns a completed drag gesture into update instructions.
// activeID is the dragged card; overID is whatever the host UI's
// hit-testing reported under the pointer: another card, a group label
// when the drop landed on empty column space, or nothing.
//
// Zero instructions means no-op. One instruction is a same-group reorder.
// Two instructions are a cross-group move, remove before insert, and each
// intermediate state is itself a valid board.
func ComputeMove(state domain.BoardState, activeID, overID string) []domain.UpdateGroup {
	if activeID == "" || overID == "" || activeID == overID {
		return nil
	}

	fromGroup, fromIdx, ok := locate(state, activeID)
	if !ok {
		return nil
	}
	toGroup, toIdx, ok := resolveTarget(state, overID)
	if !ok {
		return nil
	}

	if fromGroup == toGroup {
		// Without a concrete target card there is no position to move to.
		if toIdx < 0 || toIdx == fromIdx {
			return nil
		}
		return []domain.UpdateGroup{
			{Group: fromGroup, Cards: arrayMove(state[fromGroup], fromIdx, toIdx)},
		}
	}

	moving := state[fromGroup][fromIdx]
	return []domain.UpdateGroup{
		{Group: fromGroup, Cards: removeAt(state[fromGroup], fromIdx)},
		{Group: toGroup, Cards: insertAfter(state[toGroup], toIdx, moving)},
	}
}

// locate finds the group and index currently holding the card.
func locate(state domain.BoardState, cardID string) (domain.Group, int, bool) {
	for _, g := range domain.Groups() {
		for i, c := range state[g] {
			if c.ID == cardID {
				return g, i, true
			}
		}
	}
	return "", -1, false
}

// resolveTarget resolves the over identifier to a drop position. A card ID
// gives its group and index; a bare group label means empty column space
// and reports index -1.
func resolveTarget(state domain.BoardState, overID string) (domain.Group, int, bool) {
	if g, i, ok := locate(state, overID); ok {
		return g, i, true
	}
	if g, ok := domain.ParseGroup(overID); ok {
		return g, -1, true
	}
	return "", -1, false
}

// arrayMove relocates the element at from to sit at index to, shifting
// everything in between by one slot. It never mutates the input.
func arrayMove(cards []domain.Card, from, to int) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	out = append(out, cards[:from]...)
	out = append(out, cards[from+1:]...)
	moving := cards[from]
	out = append(out[:to], append([]domain.Card{moving}, out[to:]...)...)
	return out
}

func removeAt(cards []domain.Card, idx int) []domain.Card {
	out := make([]domain.Card, 0, len(cards)-1)
	out = append(out, cards[:idx]...)
	return append(out, cards[idx+1:]...)
}

// insertAfter places the card one slot past the target index; a negative
// index (unresolved target) appends at the end.
func insertAfter(cards []domain.Card, idx int, moving domain.Card) []domain.Card {
	pos := idx + 1
	if idx < 0 || pos > len(cards) {
		pos = len(cards)
	}
	out := make([]domain.Card, 0, len(cards)+1)
	out = append(out, cards[:pos]...)
	out = append(out, moving)
	return append(out, cards[pos:]...)
}
