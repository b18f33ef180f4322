package local

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	factordomain "stepup-gateway/internal/factor/domain"
	"stepup-gateway/internal/provider"
)

func TestProvider_EnrollListUnenroll(t *testing.T) {
	p := New("stepup-gateway-test")
	ctx := context.Background()

	m, err := p.EnrollFactor(ctx, "admin-1", "admin-console")
	if err != nil {
		t.Fatalf("EnrollFactor: %v", err)
	}
	if m.Secret == "" || m.OTPAuthURL == "" {
		t.Errorf("material incomplete: %+v", m)
	}

	factors, err := p.ListFactors(ctx, "admin-1")
	if err != nil {
		t.Fatalf("ListFactors: %v", err)
	}
	if len(factors) != 1 || factors[0].Status != factordomain.FactorUnverified {
		t.Fatalf("factors = %+v, want one unverified", factors)
	}

	if err := p.UnenrollFactor(ctx, m.FactorID); err != nil {
		t.Fatalf("UnenrollFactor: %v", err)
	}
	factors, _ = p.ListFactors(ctx, "admin-1")
	if len(factors) != 0 {
		t.Errorf("factors after unenroll = %+v, want none", factors)
	}
}

func TestProvider_UnenrollMissing(t *testing.T) {
	p := New("stepup-gateway-test")
	if err := p.UnenrollFactor(context.Background(), "nope"); !errors.Is(err, provider.ErrFactorNotFound) {
		t.Errorf("err = %v, want ErrFactorNotFound", err)
	}
}

func TestProvider_VerifyMarksFactorVerified(t *testing.T) {
	p := New("stepup-gateway-test")
	ctx := context.Background()

	m, err := p.EnrollFactor(ctx, "admin-1", "admin-console")
	if err != nil {
		t.Fatalf("EnrollFactor: %v", err)
	}
	ch, err := p.CreateChallenge(ctx, m.FactorID)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	code, err := totp.GenerateCode(m.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if err := p.VerifyChallenge(ctx, m.FactorID, ch.ID, code); err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}

	factors, _ := p.ListFactors(ctx, "admin-1")
	if len(factors) != 1 || factors[0].Status != factordomain.FactorVerified {
		t.Errorf("factors = %+v, want one verified", factors)
	}

	// Consumed: the same challenge cannot be used again.
	if err := p.VerifyChallenge(ctx, m.FactorID, ch.ID, code); !errors.Is(err, provider.ErrChallengeExpired) {
		t.Errorf("err = %v, want ErrChallengeExpired for consumed challenge", err)
	}
}

func TestProvider_WrongCode(t *testing.T) {
	p := New("stepup-gateway-test")
	ctx := context.Background()

	m, _ := p.EnrollFactor(ctx, "admin-1", "admin-console")
	ch, _ := p.CreateChallenge(ctx, m.FactorID)
	if err := p.VerifyChallenge(ctx, m.FactorID, ch.ID, "000000"); !errors.Is(err, provider.ErrCodeInvalid) {
		t.Errorf("err = %v, want ErrCodeInvalid", err)
	}
}

func TestProvider_ChallengeExpiry(t *testing.T) {
	p := New("stepup-gateway-test")
	ctx := context.Background()

	m, _ := p.EnrollFactor(ctx, "admin-1", "admin-console")
	ch, _ := p.CreateChallenge(ctx, m.FactorID)

	p.nowF = func() time.Time { return time.Now().UTC().Add(challengeTTL + time.Minute) }
	code, _ := totp.GenerateCode(m.Secret, time.Now().UTC())
	if err := p.VerifyChallenge(ctx, m.FactorID, ch.ID, code); !errors.Is(err, provider.ErrChallengeExpired) {
		t.Errorf("err = %v, want ErrChallengeExpired", err)
	}
}

// The default clock must track the wall clock, not the construction instant,
// or challenge expiry never fires.
func TestProvider_DefaultClockAdvances(t *testing.T) {
	p := New("stepup-gateway-test")
	first := p.nowF()
	time.Sleep(5 * time.Millisecond)
	if second := p.nowF(); !second.After(first) {
		t.Fatalf("clock did not advance: %v then %v", first, second)
	}

	ctx := context.Background()
	m, _ := p.EnrollFactor(ctx, "admin-1", "admin-console")
	ch, err := p.CreateChallenge(ctx, m.FactorID)
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	entry := p.challenges[ch.ID]
	if !entry.expiresAt.After(ch.IssuedAt) {
		t.Errorf("expiresAt %v not after IssuedAt %v", entry.expiresAt, ch.IssuedAt)
	}
	if got := entry.expiresAt.Sub(ch.IssuedAt); got != challengeTTL {
		t.Errorf("challenge ttl = %v, want %v", got, challengeTTL)
	}
}

func TestProvider_ChallengeForMissingFactor(t *testing.T) {
	p := New("stepup-gateway-test")
	if _, err := p.CreateChallenge(context.Background(), "nope"); !errors.Is(err, provider.ErrFactorNotFound) {
		t.Errorf("err = %v, want ErrFactorNotFound", err)
	}
}
