package domain

import "time"

// AuditLog represents one audit event on the step-up surface.
type AuditLog struct {
	ID        string
	AdminID   string
	SessionID string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
