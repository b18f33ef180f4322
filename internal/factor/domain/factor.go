package domain

import "time"

// FactorStatus is the provider-side lifecycle state of a TOTP factor.
type FactorStatus string

const (
	// FactorUnverified means the factor was created but its first code was never verified.
	// Unverified factors left behind by interrupted enrollments are debris and get cleaned up.
	FactorUnverified FactorStatus = "unverified"
	// FactorVerified means the factor completed its first verification and is usable for step-up.
	FactorVerified FactorStatus = "verified"
)

// Factor is a TOTP factor record as held by the identity provider. The gateway never
// mutates a factor in place; it only creates and deletes them through the provider.
type Factor struct {
	ID        string
	Status    FactorStatus
	Label     string
	CreatedAt time.Time
}

// EnrollmentMaterial is the provisioning material produced by a single successful
// enroll call: the shared secret and the otpauth URL the administrator scans.
// It is never persisted; it is invalidated as soon as the factor it describes is
// deleted or superseded.
type EnrollmentMaterial struct {
	FactorID   string
	Secret     string
	OTPAuthURL string
}

// Challenge is a short-lived, single-use verification challenge bound to one factor.
// A submitted code is only meaningful against the specific challenge it was issued for.
type Challenge struct {
	ID       string
	FactorID string
	IssuedAt time.Time
}
