// Package workflow orchestrates the ask flow: question in, external call,
// normalization, board commit. One controller owns one user's board.
package workflow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"insight-board/board"
	"insight-board/domain"
)

var (
	// ErrEmptyQuestion marks a blank submission. It belongs to the silent
	// input-rejection class: no state change, no external call.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrSubmissionInFlight marks a submit issued while another is still
	// pending. The second one is ignored, never queued.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// QuestionService generates an issue payload from a question.
type QuestionService interface {
	GenerateIssue(ctx context.Context, question string) (*domain.RawTaskPayload, error)
}

// Controller runs the ask workflow against a single board.
type Controller struct {
	service  QuestionService
	store    *board.Store
	logger   *log.Logger
	onCommit func(domain.BoardState)
	inFlight atomic.Bool
}

// NewController creates a controller with an empty board. onCommit, when
// non-nil, fires after every committed transition with a fresh snapshot.
func NewController(service QuestionService, logger *log.Logger, onCommit func(domain.BoardState)) *Controller {
	return &Controller{
		service:  service,
		store:    board.NewStore(),
		logger:   logger,
		onCommit: onCommit,
	}
}

// Submit runs the full ask flow. It suspends while the external call is in
// flight; a concurrent second call returns ErrSubmissionInFlight without
// touching the service. Failures leave the existing board untouched.
func (c *Controller) Submit(ctx context.Context, question string) (domain.BoardState, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer c.inFlight.Store(false)

	payload, err := c.service.GenerateIssue(ctx, question)
	if err != nil {
		c.logger.WithError(err).Warn("issue generation failed, board unchanged")
		return nil, err
	}

	next := board.Normalize(payload)
	c.store.Replace(next)
	c.commit()
	return c.store.Snapshot(), nil
}

// AcceptPrecomputed commits a payload that arrived already computed from
// another flow, bypassing the external call.
func (c *Controller) AcceptPrecomputed(payload *domain.RawTaskPayload) domain.BoardState {
	c.store.Replace(board.Normalize(payload))
	c.commit()
	return c.store.Snapshot()
}

// Move applies a completed drag gesture. The instructions are applied in
// the order the engine emitted them (remove before insert). It reports
// whether anything changed; no-op gestures return the board as is.
func (c *Controller) Move(activeID, overID string) (domain.BoardState, bool) {
	instructions := board.ComputeMove(c.store.Snapshot(), activeID, overID)
	for _, in := range instructions {
		c.store.Apply(in)
	}
	if len(instructions) == 0 {
		return c.store.Snapshot(), false
	}
	c.commit()
	return c.store.Snapshot(), true
}

// Board returns a read-only snapshot of the current state.
func (c *Controller) Board() domain.BoardState {
	return c.store.Snapshot()
}

// Counts returns per-group card counts for display.
func (c *Controller) Counts() map[domain.Group]int {
	return c.store.Counts()
}

func (c *Controller) commit() {
	if c.onCommit != nil {
		c.onCommit(c.store.Snapshot())
	}
}
