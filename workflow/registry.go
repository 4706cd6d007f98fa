package workflow

import "sync"

// Registry hands out one controller per user, created on first use and
// dropped when the board view unmounts. Boards live in memory only; there
// is no persistence across sessions.
type Registry struct {
	mu       sync.Mutex
	factory  func(userID string) *Controller
	sessions map[string]*Controller
}

// NewRegistry creates a registry using factory to build per-user
// controllers.
func NewRegistry(factory func(userID string) *Controller) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Controller),
	}
}

// Session returns the user's controller, creating it on demand.
func (r *Registry) Session(userID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctrl, ok := r.sessions[userID]; ok {
		return ctrl
	}
	ctrl := r.factory(userID)
	r.sessions[userID] = ctrl
	return ctrl
}

// Drop discards the user's board. The next Session call starts empty.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
}
