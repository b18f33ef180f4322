// Package session holds the in-memory registry of sessions and their step-up
// controllers. One controller (and one gate) exists per session; the gate is
// reachable only through its entry, never through package-level state.
package session

import (
	"context"
	"sync"
	"time"

	"stepup-gateway/internal/session/domain"
	"stepup-gateway/internal/stepup"
)

// Entry pairs a session with its step-up gate and controller.
type Entry struct {
	Session    domain.Session
	Gate       *stepup.Gate
	Controller *stepup.Controller
}

// Builder constructs the gate and controller for a new session. It runs the
// step-up requirement policy for the role and wires the controller's verified
// callback; called once per session under the registry lock.
type Builder func(ctx context.Context, s domain.Session) (*stepup.Gate, *stepup.Controller, error)

// Registry is the in-memory session registry.
type Registry struct {
	build Builder

	mu      sync.Mutex
	entries map[string]*Entry
	nowF    func() time.Time
}

// NewRegistry returns an empty registry using build for new sessions.
func NewRegistry(build Builder) *Registry {
	return &Registry{
		build:   build,
		entries: make(map[string]*Entry),
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the entry for sessionID, creating it on first sight of
// the session. AdminID and role come from the validated access token.
func (r *Registry) GetOrCreate(ctx context.Context, sessionID, adminID, role string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sessionID]; ok {
		e.Session.LastSeenAt = r.nowF()
		return e, nil
	}
	now := r.nowF()
	s := domain.Session{
		ID:         sessionID,
		AdminID:    adminID,
		Role:       role,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	gate, controller, err := r.build(ctx, s)
	if err != nil {
		return nil, err
	}
	e := &Entry{Session: s, Gate: gate, Controller: controller}
	r.entries[sessionID] = e
	return e, nil
}

// Get returns the entry for sessionID if present.
func (r *Registry) Get(sessionID string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	return e, ok
}

// Terminate discards the session and with it the gate. This is the only way a
// satisfied gate ever goes away: full session termination, never a reset.
func (r *Registry) Terminate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}
