package stepup

import (
	"context"
	"errors"
	"testing"

	factordomain "stepup-gateway/internal/factor/domain"
)

func TestVerifier_IssueAndVerify(t *testing.T) {
	p := newFakeProvider()
	p.seedFactor("f-1", factordomain.FactorVerified)
	v := NewVerifier(p)
	ctx := context.Background()

	ch, err := v.Issue(ctx, "f-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := v.Verify(ctx, ch, "123456"); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerifier_IssueFactorGone(t *testing.T) {
	p := newFakeProvider()
	v := NewVerifier(p)

	_, err := v.Issue(context.Background(), "missing")
	if !errors.Is(err, ErrChallengeFailed) {
		t.Errorf("err = %v, want ErrChallengeFailed", err)
	}
}

func TestVerifier_WrongCode(t *testing.T) {
	p := newFakeProvider()
	p.seedFactor("f-1", factordomain.FactorVerified)
	v := NewVerifier(p)
	ctx := context.Background()

	ch, err := v.Issue(ctx, "f-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := v.Verify(ctx, ch, "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("err = %v, want ErrCodeInvalid", err)
	}
}

// A challenge superseded by a newer one for the same factor never validates.
func TestVerifier_SupersededChallenge(t *testing.T) {
	p := newFakeProvider()
	p.seedFactor("f-1", factordomain.FactorVerified)
	v := NewVerifier(p)
	ctx := context.Background()

	old, err := v.Issue(ctx, "f-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := v.Issue(ctx, "f-1"); err != nil {
		t.Fatalf("Issue (second): %v", err)
	}
	if err := v.Verify(ctx, old, "123456"); !errors.Is(err, ErrChallengeExpired) {
		t.Errorf("err = %v, want ErrChallengeExpired", err)
	}
}

func TestVerifier_NilChallenge(t *testing.T) {
	v := NewVerifier(newFakeProvider())
	if err := v.Verify(context.Background(), nil, "123456"); !errors.Is(err, ErrNoLiveChallenge) {
		t.Errorf("err = %v, want ErrNoLiveChallenge", err)
	}
}
