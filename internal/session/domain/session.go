package domain

import "time"

// Session is one administrator's authenticated session as seen by this
// service. Primary authentication happens elsewhere; the session here exists
// to scope the step-up gate and controller. No durable factor state is kept on
// it: the identity provider remains the source of truth.
type Session struct {
	ID         string
	AdminID    string
	Role       string
	CreatedAt  time.Time
	LastSeenAt time.Time
}
