package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// StepUpACR is the acr claim value carried by step-up tokens.
const StepUpACR = "stepup"

// AccessClaims holds JWT claims for the access token issued by the primary
// login (out of scope here); this service only validates them.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// StepUpClaims holds JWT claims for the step-up token issued after a
// successful verification. acr marks the token as step-up proof so stateless
// replicas of the admin surface can honor the gate.
type StepUpClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	ACR       string `json:"acr"`
}

// TokenProvider validates access tokens and issues/validates step-up tokens
// using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	stepUpTTL  time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private
// key (RS256 or ES256). issuer and audience are set on issued claims and
// validated on every parse. stepUpTTL bounds the step-up token lifetime.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, stepUpTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		stepUpTTL:  stepUpTTL,
	}
}

// IssueStepUp issues a short-lived step-up token bound to the session. Called
// only after the session's verify-success transition.
func (p *TokenProvider) IssueStepUp(sessionID, adminID string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.stepUpTTL)
	claims := StepUpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		ACR:       StepUpACR,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// ValidateStepUp parses and validates a step-up token (signature, exp, iss,
// aud, acr). Returns the session and admin it is bound to.
func (p *TokenProvider) ValidateStepUp(tokenString string) (sessionID, adminID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &StepUpClaims{}, p.keyFunc)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*StepUpClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.ACR != StepUpACR {
		return "", "", ErrInvalidToken
	}
	if err := p.checkIssAud(claims.Issuer, claims.Audience); err != nil {
		return "", "", err
	}
	return claims.SessionID, claims.Subject, nil
}

// ValidateAccess parses and validates the access token (signature, exp, iss,
// aud). Returns sessionID, adminID (sub), and role.
func (p *TokenProvider) ValidateAccess(tokenString string) (sessionID, adminID, role string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return "", "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", "", ErrInvalidToken
	}
	if err := p.checkIssAud(claims.Issuer, claims.Audience); err != nil {
		return "", "", "", err
	}
	return claims.SessionID, claims.Subject, claims.Role, nil
}

// IssueAccess issues an access token. Exists for local dev mode and tests; in
// production the primary login service issues access tokens.
func (p *TokenProvider) IssueAccess(sessionID, adminID, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sessionID,
		Role:      role,
	}
	return p.sign(claims)
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return p.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return p.publicKey, nil
	}
	return nil, ErrInvalidToken
}

func (p *TokenProvider) checkIssAud(issuer string, audience jwt.ClaimStrings) error {
	if issuer != p.issuer {
		return ErrInvalidToken
	}
	for _, a := range audience {
		if a == p.audience {
			return nil
		}
	}
	return ErrInvalidToken
}
