package stepup

import (
	"context"
	"log"
	"time"

	factordomain "stepup-gateway/internal/factor/domain"
	"stepup-gateway/internal/provider"
)

// DefaultResolveTimeout bounds the single ListFactors call per resolution.
const DefaultResolveTimeout = 3 * time.Second

// SituationKind classifies an administrator's current factor state.
type SituationKind int

const (
	// SituationNoFactor: no factors enrolled; enrollment is required.
	SituationNoFactor SituationKind = iota
	// SituationUnverified: only debris from interrupted enrollments exists.
	// It must be cleaned up before a new factor is created.
	SituationUnverified
	// SituationVerified: exactly one verified factor exists and can be challenged.
	SituationVerified
	// SituationIndeterminate: the provider timed out, failed, or returned an
	// anomalous state. Treated like SituationNoFactor so that an availability
	// failure of the provider is never read as "no second factor needed".
	SituationIndeterminate
)

// String returns the classification name for logs and status responses.
func (k SituationKind) String() string {
	switch k {
	case SituationNoFactor:
		return "no_factor"
	case SituationUnverified:
		return "unverified_factor"
	case SituationVerified:
		return "verified_factor"
	case SituationIndeterminate:
		return "indeterminate"
	}
	return "unknown"
}

// Situation is the classified result of one resolution.
type Situation struct {
	Kind SituationKind
	// Factor is the single verified factor when Kind is SituationVerified; nil otherwise.
	Factor *factordomain.Factor
	// Stale holds every unverified factor found, regardless of Kind. The
	// enrollment coordinator deletes all of them before creating a new factor.
	Stale []factordomain.Factor
}

// Resolver queries the provider for the administrator's factors and classifies
// the result. Pure read; no side effects on provider state.
type Resolver struct {
	client  provider.Client
	timeout time.Duration
}

// NewResolver returns a Resolver using the given provider client. timeout bounds
// each Resolve call; <= 0 means DefaultResolveTimeout.
func NewResolver(client provider.Client, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Resolver{client: client, timeout: timeout}
}

// Resolve calls ListFactors exactly once and classifies the result. It never
// polls or retries. Transport errors and timeouts yield SituationIndeterminate.
// More than one verified factor is a provider anomaly: it is logged and also
// yields SituationIndeterminate rather than picking one arbitrarily.
func (r *Resolver) Resolve(ctx context.Context, adminID string) Situation {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	factors, err := r.client.ListFactors(ctx, adminID)
	if err != nil {
		log.Printf("stepup: resolve for %s failed, treating as unenrolled: %v", adminID, err)
		return Situation{Kind: SituationIndeterminate}
	}

	var verified []factordomain.Factor
	var stale []factordomain.Factor
	for _, f := range factors {
		switch f.Status {
		case factordomain.FactorVerified:
			verified = append(verified, f)
		case factordomain.FactorUnverified:
			stale = append(stale, f)
		default:
			// Unknown status is treated as debris, not silently ignored.
			log.Printf("stepup: factor %s has unknown status %q, treating as unverified", f.ID, f.Status)
			stale = append(stale, f)
		}
	}

	switch {
	case len(verified) > 1:
		log.Printf("stepup: provider anomaly for %s: %d verified factors", adminID, len(verified))
		return Situation{Kind: SituationIndeterminate, Stale: stale}
	case len(verified) == 1:
		f := verified[0]
		return Situation{Kind: SituationVerified, Factor: &f, Stale: stale}
	case len(stale) > 0:
		return Situation{Kind: SituationUnverified, Stale: stale}
	default:
		return Situation{Kind: SituationNoFactor}
	}
}
