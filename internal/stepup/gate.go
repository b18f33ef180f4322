package stepup

import "sync"

// Gate is the session-scoped record of whether step-up is satisfied. It is
// created per session from the role's policy decision and passed by reference
// to the route guard; there is no ambient global.
//
// satisfied is monotonic within a session: it has exactly one writer (the
// controller's verify-success transition) and no way to reset it short of
// discarding the session.
type Gate struct {
	required bool

	mu        sync.Mutex
	satisfied bool
}

// NewGate returns a Gate. required says whether the caller's role needs step-up
// at all; when false, Satisfied reports true immediately.
func NewGate(required bool) *Gate {
	return &Gate{required: required}
}

// Required reports whether the role behind this session needs step-up.
func (g *Gate) Required() bool {
	return g.required
}

// Satisfied reports whether the privileged surface may be admitted.
func (g *Gate) Satisfied() bool {
	if !g.required {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.satisfied
}

// markSatisfied is called only from the controller's verify-success transition.
func (g *Gate) markSatisfied() {
	g.mu.Lock()
	g.satisfied = true
	g.mu.Unlock()
}
