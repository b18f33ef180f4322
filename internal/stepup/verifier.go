package stepup

import (
	"context"
	"errors"
	"fmt"

	factordomain "stepup-gateway/internal/factor/domain"
	"stepup-gateway/internal/provider"
)

// Verifier issues challenges against a factor and validates submitted codes.
// A code is only ever validated against the specific challenge it was issued
// for; supersession is enforced by the controller discarding its reference to
// the old challenge, so a stale code cannot be validated accidentally.
type Verifier struct {
	client provider.Client
}

// NewVerifier returns a Verifier using the given provider client.
func NewVerifier(client provider.Client) *Verifier {
	return &Verifier{client: client}
}

// Issue asks the provider for a fresh challenge bound to factorID. Fails with
// ErrChallengeFailed if the factor no longer exists or the provider fails.
func (v *Verifier) Issue(ctx context.Context, factorID string) (*factordomain.Challenge, error) {
	ch, err := v.client.CreateChallenge(ctx, factorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}
	return ch, nil
}

// Verify submits code against the given challenge. Returns nil on success,
// ErrCodeInvalid or ErrChallengeExpired on rejection, and ErrChallengeFailed
// for factor-gone or transport failures.
func (v *Verifier) Verify(ctx context.Context, ch *factordomain.Challenge, code string) error {
	if ch == nil {
		return ErrNoLiveChallenge
	}
	err := v.client.VerifyChallenge(ctx, ch.FactorID, ch.ID, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrCodeInvalid):
		return ErrCodeInvalid
	case errors.Is(err, provider.ErrChallengeExpired):
		return ErrChallengeExpired
	default:
		return fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}
}
