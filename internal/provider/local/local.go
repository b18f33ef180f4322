// Package local is an in-process identity provider used in development and tests,
// the analogue of running without a real IdP. Factors and challenges live in memory;
// codes are real TOTP codes validated with github.com/pquerna/otp. Not for production
// (config refuses it when APP_ENV=production).
package local

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	factordomain "stepup-gateway/internal/factor/domain"
	"stepup-gateway/internal/provider"
)

const (
	secretSize   = 20
	challengeTTL = 5 * time.Minute
)

type factorEntry struct {
	factor factordomain.Factor
	secret string
}

type challengeEntry struct {
	challenge factordomain.Challenge
	expiresAt time.Time
}

// Provider implements provider.Client in memory.
type Provider struct {
	issuer string

	mu         sync.Mutex
	factors    map[string]*factorEntry    // factor id -> entry
	byAdmin    map[string][]string        // admin id -> factor ids, creation order
	challenges map[string]*challengeEntry // challenge id -> entry
	nowF       func() time.Time
}

// New returns an empty local provider. issuer is the label shown in authenticator apps.
func New(issuer string) *Provider {
	return &Provider{
		issuer:     issuer,
		factors:    make(map[string]*factorEntry),
		byAdmin:    make(map[string][]string),
		challenges: make(map[string]*challengeEntry),
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// ListFactors returns the administrator's factors in creation order.
func (p *Provider) ListFactors(ctx context.Context, adminID string) ([]factordomain.Factor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.byAdmin[adminID]
	out := make([]factordomain.Factor, 0, len(ids))
	for _, id := range ids {
		if e, ok := p.factors[id]; ok {
			out = append(out, e.factor)
		}
	}
	return out, nil
}

// EnrollFactor creates an unverified TOTP factor with a freshly generated secret.
func (p *Provider) EnrollFactor(ctx context.Context, adminID, label string) (*factordomain.EnrollmentMaterial, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: adminID,
		SecretSize:  secretSize,
	})
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.New().String()
	p.factors[id] = &factorEntry{
		factor: factordomain.Factor{
			ID:        id,
			Status:    factordomain.FactorUnverified,
			Label:     label,
			CreatedAt: p.nowF(),
		},
		secret: key.Secret(),
	}
	p.byAdmin[adminID] = append(p.byAdmin[adminID], id)
	return &factordomain.EnrollmentMaterial{
		FactorID:   id,
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
	}, nil
}

// UnenrollFactor deletes the factor and any challenges bound to it.
func (p *Provider) UnenrollFactor(ctx context.Context, factorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.factors[factorID]; !ok {
		return provider.ErrFactorNotFound
	}
	delete(p.factors, factorID)
	for admin, ids := range p.byAdmin {
		kept := ids[:0]
		for _, id := range ids {
			if id != factorID {
				kept = append(kept, id)
			}
		}
		p.byAdmin[admin] = kept
	}
	for id, e := range p.challenges {
		if e.challenge.FactorID == factorID {
			delete(p.challenges, id)
		}
	}
	return nil
}

// CreateChallenge issues a challenge for the factor.
func (p *Provider) CreateChallenge(ctx context.Context, factorID string) (*factordomain.Challenge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.factors[factorID]; !ok {
		return nil, provider.ErrFactorNotFound
	}
	now := p.nowF()
	ch := factordomain.Challenge{ID: uuid.New().String(), FactorID: factorID, IssuedAt: now}
	p.challenges[ch.ID] = &challengeEntry{challenge: ch, expiresAt: now.Add(challengeTTL)}
	return &ch, nil
}

// VerifyChallenge validates code against the factor's TOTP secret. The challenge is
// single-use: it is consumed on success and stays usable for further attempts only
// until it expires. On success the factor becomes verified.
func (p *Provider) VerifyChallenge(ctx context.Context, factorID, challengeID, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	fe, ok := p.factors[factorID]
	if !ok {
		return provider.ErrFactorNotFound
	}
	ce, ok := p.challenges[challengeID]
	if !ok || ce.challenge.FactorID != factorID {
		return provider.ErrChallengeExpired
	}
	if !ce.expiresAt.After(p.nowF()) {
		delete(p.challenges, challengeID)
		return provider.ErrChallengeExpired
	}
	if !totp.Validate(code, fe.secret) {
		return provider.ErrCodeInvalid
	}
	delete(p.challenges, challengeID)
	fe.factor.Status = factordomain.FactorVerified
	return nil
}
