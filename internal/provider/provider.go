// Package provider defines the identity-provider contract the step-up controller
// consumes. The provider is the single source of truth for factors and challenges;
// the gateway holds no durable factor state of its own.
package provider

import (
	"context"
	"errors"

	factordomain "stepup-gateway/internal/factor/domain"
)

// Sentinel errors. Implementations map their transport/status failures onto these so
// the controller can classify without knowing the wire format.
var (
	// ErrTransient is a timeout or transport failure. Callers treat it as "state
	// unknown" and bias toward requiring enrollment, never toward granting access.
	ErrTransient = errors.New("provider: transient error")
	// ErrFactorNotFound means the referenced factor no longer exists (e.g. it was
	// deleted concurrently from another client).
	ErrFactorNotFound = errors.New("provider: factor not found")
	// ErrCodeInvalid means the provider rejected the submitted code.
	ErrCodeInvalid = errors.New("provider: code invalid")
	// ErrChallengeExpired means the challenge is expired or was already consumed.
	ErrChallengeExpired = errors.New("provider: challenge expired")
)

// Client is the operation set required from the identity provider.
// All calls are blocking network operations; callers bound them with context deadlines.
type Client interface {
	// ListFactors returns all factors enrolled for the administrator, in any order.
	ListFactors(ctx context.Context, adminID string) ([]factordomain.Factor, error)
	// EnrollFactor creates a new unverified factor and returns its provisioning material.
	EnrollFactor(ctx context.Context, adminID, label string) (*factordomain.EnrollmentMaterial, error)
	// UnenrollFactor deletes the factor. A nil return confirms the provider no longer
	// holds it; callers must not create a replacement factor before that confirmation.
	UnenrollFactor(ctx context.Context, factorID string) error
	// CreateChallenge issues a fresh challenge bound to the factor.
	// Returns ErrFactorNotFound if the factor vanished.
	CreateChallenge(ctx context.Context, factorID string) (*factordomain.Challenge, error)
	// VerifyChallenge validates code against the given challenge. Returns nil on
	// success (the challenge is consumed and the factor becomes verified), or
	// ErrCodeInvalid / ErrChallengeExpired / ErrFactorNotFound.
	VerifyChallenge(ctx context.Context, factorID, challengeID, code string) error
}
