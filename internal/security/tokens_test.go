package security

import (
	"errors"
	"testing"
	"time"
)

func TestTokenProvider_StepUpRoundTrip(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	token, expiresAt, err := p.IssueStepUp("session-1", "admin-1")
	if err != nil {
		t.Fatalf("IssueStepUp: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Error("step-up token already expired at issue time")
	}

	sessionID, adminID, err := p.ValidateStepUp(token)
	if err != nil {
		t.Fatalf("ValidateStepUp: %v", err)
	}
	if sessionID != "session-1" || adminID != "admin-1" {
		t.Errorf("got session=%q admin=%q, want session-1/admin-1", sessionID, adminID)
	}
}

func TestTokenProvider_AccessRoundTrip(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	token, err := p.IssueAccess("session-1", "admin-1", "org_admin", 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	sessionID, adminID, role, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if sessionID != "session-1" || adminID != "admin-1" || role != "org_admin" {
		t.Errorf("got session=%q admin=%q role=%q", sessionID, adminID, role)
	}
}

// An access token is not step-up proof: the acr claim is required.
func TestTokenProvider_AccessTokenIsNotStepUpProof(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	token, err := p.IssueAccess("session-1", "admin-1", "org_admin", 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, _, err := p.ValidateStepUp(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenProvider_ExpiredStepUpToken(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", -time.Minute)

	token, _, err := p.IssueStepUp("session-1", "admin-1")
	if err != nil {
		t.Fatalf("IssueStepUp: %v", err)
	}
	if _, _, err := p.ValidateStepUp(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken for expired token", err)
	}
}

func TestTokenProvider_WrongIssuer(t *testing.T) {
	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	issuerA := NewTokenProvider(signer, pub, "issuer-a", "test-audience", 10*time.Minute)
	issuerB := NewTokenProvider(signer, pub, "issuer-b", "test-audience", 10*time.Minute)

	token, _, err := issuerA.IssueStepUp("session-1", "admin-1")
	if err != nil {
		t.Fatalf("IssueStepUp: %v", err)
	}
	if _, _, err := issuerB.ValidateStepUp(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken for wrong issuer", err)
	}
}

func TestTokenProvider_GarbageToken(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, _, _, err := p.ValidateAccess("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
