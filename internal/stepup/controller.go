// Package stepup implements the step-up authentication controller: factor-state
// resolution, recovery from interrupted enrollments, challenge verification,
// and the session-scoped gate consulted by the route guard.
package stepup

import (
	"context"
	"sync"

	factordomain "stepup-gateway/internal/factor/domain"
)

// State is the controller's position in the step-up flow.
type State int

const (
	// StateUnresolved is the initial state; entered on privileged-route
	// activation while the gate is unsatisfied, and re-entered after failures
	// so that the next attempt re-derives truth from the provider.
	StateUnresolved State = iota
	// StateEnrolling means a new factor is being (or needs to be) created.
	StateEnrolling
	// StateChallenging means a challenge is live and a code is awaited.
	StateChallenging
	// StateVerified is terminal for the session: the gate is satisfied.
	StateVerified
	// StateFailed records a surfaced error; an explicit retry returns to
	// StateUnresolved and re-runs resolution, never silently to StateVerified.
	StateFailed
)

// String returns the state name used in status responses and logs.
func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateEnrolling:
		return "enrolling"
	case StateChallenging:
		return "challenging"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Prompt tells the caller (the UI) what to present next.
type Prompt struct {
	State State
	// Enrollment carries provisioning material while a freshly created factor
	// awaits its first code. Repeated Begin calls during that window re-present
	// the same material; once the factor is verified it is gone for good. Never
	// persisted by the gateway.
	Enrollment *factordomain.EnrollmentMaterial
	// ChallengeID identifies the live challenge when a code is awaited.
	ChallengeID string
	// EnrollmentCompleted is set on the verify-success prompt when the code
	// confirmed a freshly enrolled factor rather than a pre-existing one.
	EnrollmentCompleted bool
}

// Controller drives the step-up state machine for one session. It assumes a
// single logical actor: one enrollment/verification attempt in flight per
// administrator from this client. Transitions happen only on the one automatic
// resolution at route entry and on explicit administrator actions; the machine
// never free-runs or polls.
type Controller struct {
	adminID     string
	resolver    *Resolver
	coordinator *Coordinator
	verifier    *Verifier
	gate        *Gate
	onVerified  func()

	mu        sync.Mutex
	state     State
	challenge *factordomain.Challenge
	material  *factordomain.EnrollmentMaterial
	once      sync.Once
}

// NewController returns a Controller for the given administrator and session
// gate. onVerified fires exactly once when StateVerified is reached; it may be
// nil.
func NewController(adminID string, resolver *Resolver, coordinator *Coordinator, verifier *Verifier, gate *Gate, onVerified func()) *Controller {
	return &Controller{
		adminID:     adminID,
		resolver:    resolver,
		coordinator: coordinator,
		verifier:    verifier,
		gate:        gate,
		onVerified:  onVerified,
		state:       StateUnresolved,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Gate returns the session gate this controller writes.
func (c *Controller) Gate() *Gate {
	return c.gate
}

// Begin drives the machine from StateUnresolved (or StateFailed, as the
// explicit retry) through resolution and into StateChallenging, creating a
// factor first when enrollment is needed. Calling Begin while a challenge is
// already live re-presents it without re-resolving; calling it after
// verification reports StateVerified.
//
// Every entry from an unresolved or failed state re-runs the resolver: retries
// never trust previously fetched factor data, which is what makes repeated
// interrupted enrollments converge to a single live factor.
func (c *Controller) Begin(ctx context.Context) (*Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateVerified:
		return &Prompt{State: StateVerified}, nil
	case StateChallenging:
		if c.challenge != nil {
			return &Prompt{State: StateChallenging, Enrollment: c.material, ChallengeID: c.challenge.ID}, nil
		}
		c.state = StateUnresolved
	case StateFailed:
		c.state = StateUnresolved
	}

	situation := c.resolver.Resolve(ctx, c.adminID)

	switch situation.Kind {
	case SituationVerified:
		return c.enterChallenging(ctx, situation.Factor.ID, nil)
	case SituationNoFactor, SituationUnverified, SituationIndeterminate:
		// Fail toward requiring enrollment, never toward granting access.
		c.state = StateEnrolling
		material, err := c.coordinator.Start(ctx, c.adminID, situation.Stale)
		if err != nil {
			// Stay in StateEnrolling; the next Begin re-resolves and retries.
			return &Prompt{State: StateEnrolling}, err
		}
		return c.enterChallenging(ctx, material.FactorID, material)
	default:
		c.state = StateFailed
		return &Prompt{State: StateFailed}, ErrChallengeFailed
	}
}

// enterChallenging issues a challenge for factorID and moves to StateChallenging.
// material is non-nil on the enrollment path: a freshly created factor is not
// self-verifying from possession of its secret; the issue/verify round trip is
// mandatory even here. Caller holds c.mu.
func (c *Controller) enterChallenging(ctx context.Context, factorID string, material *factordomain.EnrollmentMaterial) (*Prompt, error) {
	ch, err := c.verifier.Issue(ctx, factorID)
	if err != nil {
		c.state = StateFailed
		c.challenge = nil
		c.material = nil
		return &Prompt{State: StateFailed}, err
	}
	c.state = StateChallenging
	c.challenge = ch
	c.material = material
	return &Prompt{State: StateChallenging, Enrollment: material, ChallengeID: ch.ID}, nil
}

// SubmitCode validates code against the live challenge. On success the gate is
// satisfied and the machine reaches StateVerified. On any failure the machine
// returns to StateUnresolved rather than blindly retrying the same challenge: a
// failed verify may mean the factor was concurrently deleted elsewhere, so the
// next attempt must re-derive provider state.
func (c *Controller) SubmitCode(ctx context.Context, code string) (*Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateVerified {
		return &Prompt{State: StateVerified}, nil
	}
	if c.state != StateChallenging || c.challenge == nil {
		return &Prompt{State: c.state}, ErrNoLiveChallenge
	}

	err := c.verifier.Verify(ctx, c.challenge, code)
	if err != nil {
		c.state = StateUnresolved
		c.challenge = nil
		c.material = nil
		return &Prompt{State: StateUnresolved}, err
	}

	completed := c.material != nil
	c.markVerified()
	return &Prompt{State: StateVerified, EnrollmentCompleted: completed}, nil
}

// RequestNewChallenge issues a fresh challenge for the same factor ("resend").
// The previous challenge reference is discarded first, so a code for the old
// challenge can never be validated again through this controller.
func (c *Controller) RequestNewChallenge(ctx context.Context) (*Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateChallenging || c.challenge == nil {
		return &Prompt{State: c.state}, ErrNoLiveChallenge
	}
	factorID := c.challenge.FactorID
	c.challenge = nil
	return c.enterChallenging(ctx, factorID, c.material)
}

// CompleteOutOfBand marks the session verified through an alternate credential
// that the caller has already validated (e.g. a recovery code). It funnels into
// the same single verify-success transition that code verification uses; there
// is no other writer of the gate.
func (c *Controller) CompleteOutOfBand() *Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markVerified()
	return &Prompt{State: StateVerified}
}

// markVerified is the one transition that satisfies the gate. Caller holds c.mu.
func (c *Controller) markVerified() {
	c.state = StateVerified
	c.challenge = nil
	c.material = nil
	c.gate.markSatisfied()
	c.once.Do(func() {
		if c.onVerified != nil {
			c.onVerified()
		}
	})
}
