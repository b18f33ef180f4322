package stepup

import (
	"context"
	"errors"
	"fmt"

	factordomain "stepup-gateway/internal/factor/domain"
	"stepup-gateway/internal/provider"
)

// Coordinator creates a new factor after safely discarding any stale unverified
// factors left behind by interrupted enrollments. The delete strictly precedes
// the create and is never parallelized with it; this ordering is what keeps the
// provider at no more than one live unverified factor per administrator even
// when the client process restarts mid-flow.
type Coordinator struct {
	client provider.Client
	label  string
}

// NewCoordinator returns a Coordinator. label names the factor at the provider
// (e.g. the product name shown in the provider's admin view).
func NewCoordinator(client provider.Client, label string) *Coordinator {
	return &Coordinator{client: client, label: label}
}

// Start deletes every factor in stale, waiting for confirmation of each delete,
// then creates a new factor and returns its provisioning material.
//
// A delete failure aborts with ErrCleanupFailed before any create is attempted.
// A factor already gone at the provider (concurrent delete) counts as confirmed.
// Create failures surface ErrEnrollmentFailed; the caller retries by re-resolving
// provider state, never by trusting the stale list passed here.
func (c *Coordinator) Start(ctx context.Context, adminID string, stale []factordomain.Factor) (*factordomain.EnrollmentMaterial, error) {
	for _, f := range stale {
		if err := c.client.UnenrollFactor(ctx, f.ID); err != nil {
			if errors.Is(err, provider.ErrFactorNotFound) {
				continue
			}
			return nil, fmt.Errorf("%w: factor %s: %v", ErrCleanupFailed, f.ID, err)
		}
	}

	material, err := c.client.EnrollFactor(ctx, adminID, c.label)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}
	return material, nil
}
