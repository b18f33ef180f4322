package stepup

import (
	"context"
	"fmt"
	"sync"
	"time"

	factordomain "stepup-gateway/internal/factor/domain"
	"stepup-gateway/internal/provider"
)

// fakeProvider is an in-memory provider.Client with injectable failures, used to
// drive the controller through interrupted-enrollment and race scenarios.
type fakeProvider struct {
	mu         sync.Mutex
	factors    map[string]*factordomain.Factor
	order      []string
	challenges map[string]string // challenge id -> factor id
	liveByFactor map[string]string // factor id -> newest challenge id
	acceptCode string

	nextFactor    int
	nextChallenge int

	listErr     error
	listDelay   time.Duration
	enrollErr   error
	unenrollErr error
	issueErr    error

	unenrolled  []string
	verifyCalls []string // challenge ids verify was called with
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		factors:      make(map[string]*factordomain.Factor),
		challenges:   make(map[string]string),
		liveByFactor: make(map[string]string),
		acceptCode:   "123456",
	}
}

func (p *fakeProvider) seedFactor(id string, status factordomain.FactorStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factors[id] = &factordomain.Factor{ID: id, Status: status, Label: "admin-console", CreatedAt: time.Now().UTC()}
	p.order = append(p.order, id)
}

func (p *fakeProvider) unverifiedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, f := range p.factors {
		if f.Status == factordomain.FactorUnverified {
			n++
		}
	}
	return n
}

func (p *fakeProvider) factorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.factors)
}

func (p *fakeProvider) ListFactors(ctx context.Context, adminID string) ([]factordomain.Factor, error) {
	if p.listDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", provider.ErrTransient, ctx.Err())
		case <-time.After(p.listDelay):
		}
	}
	if p.listErr != nil {
		return nil, p.listErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]factordomain.Factor, 0, len(p.order))
	for _, id := range p.order {
		if f, ok := p.factors[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (p *fakeProvider) EnrollFactor(ctx context.Context, adminID, label string) (*factordomain.EnrollmentMaterial, error) {
	if p.enrollErr != nil {
		return nil, p.enrollErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextFactor++
	id := fmt.Sprintf("factor-%d", p.nextFactor)
	p.factors[id] = &factordomain.Factor{ID: id, Status: factordomain.FactorUnverified, Label: label, CreatedAt: time.Now().UTC()}
	p.order = append(p.order, id)
	return &factordomain.EnrollmentMaterial{
		FactorID:   id,
		Secret:     "SECRET" + id,
		OTPAuthURL: "otpauth://totp/test:" + adminID + "?secret=SECRET" + id,
	}, nil
}

func (p *fakeProvider) UnenrollFactor(ctx context.Context, factorID string) error {
	if p.unenrollErr != nil {
		return p.unenrollErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unenrolled = append(p.unenrolled, factorID)
	if _, ok := p.factors[factorID]; !ok {
		return provider.ErrFactorNotFound
	}
	delete(p.factors, factorID)
	return nil
}

func (p *fakeProvider) CreateChallenge(ctx context.Context, factorID string) (*factordomain.Challenge, error) {
	if p.issueErr != nil {
		return nil, p.issueErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.factors[factorID]; !ok {
		return nil, provider.ErrFactorNotFound
	}
	p.nextChallenge++
	id := fmt.Sprintf("challenge-%d", p.nextChallenge)
	p.challenges[id] = factorID
	// A newly issued challenge supersedes the previous one for the factor.
	p.liveByFactor[factorID] = id
	return &factordomain.Challenge{ID: id, FactorID: factorID, IssuedAt: time.Now().UTC()}, nil
}

func (p *fakeProvider) VerifyChallenge(ctx context.Context, factorID, challengeID, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyCalls = append(p.verifyCalls, challengeID)
	f, ok := p.factors[factorID]
	if !ok {
		return provider.ErrFactorNotFound
	}
	if p.challenges[challengeID] != factorID || p.liveByFactor[factorID] != challengeID {
		return provider.ErrChallengeExpired
	}
	if code != p.acceptCode {
		return provider.ErrCodeInvalid
	}
	delete(p.challenges, challengeID)
	delete(p.liveByFactor, factorID)
	f.Status = factordomain.FactorVerified
	return nil
}
