package domain

import "time"

// RecoveryCode is a single-use backup credential issued at enrollment
// completion (stored in recovery_codes). Only the bcrypt hash is persisted;
// the plaintext is shown to the administrator once.
type RecoveryCode struct {
	ID        string
	AdminID   string
	CodeHash  string
	UsedAt    *time.Time // nil while unused
	CreatedAt time.Time
}

// IsUsed reports whether the code has been redeemed.
func (c *RecoveryCode) IsUsed() bool {
	return c.UsedAt != nil
}
