package api

import (
	"insight-board/domain"
	"insight-board/workflow"
)

// Sessions resolves users to their board controllers.
type Sessions interface {
	Session(userID string) *workflow.Controller
	Drop(userID string)
}

// Authenticator is implemented by types able to extract user IDs from
// Authorization headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// boardResponse is the rendering handoff: the full state plus per-group
// counts for column headers.
type boardResponse struct {
	Board  domain.BoardState    `json:"board"`
	Counts map[domain.Group]int `json:"counts"`
}

func newBoardResponse(state domain.BoardState) boardResponse {
	return boardResponse{Board: state, Counts: state.Counts()}
}
