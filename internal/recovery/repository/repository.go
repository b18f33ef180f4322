package repository

import (
	"context"
	"time"

	"stepup-gateway/internal/recovery/domain"
)

// Repository defines persistence for recovery codes.
type Repository interface {
	// ReplaceForAdmin deletes the administrator's existing codes and stores the
	// new set. A fresh enrollment always invalidates older codes.
	ReplaceForAdmin(ctx context.Context, adminID string, codes []*domain.RecoveryCode) error
	// ListActiveByAdmin returns the administrator's unused codes.
	ListActiveByAdmin(ctx context.Context, adminID string) ([]*domain.RecoveryCode, error)
	// MarkUsed records the redemption time for the code.
	MarkUsed(ctx context.Context, id string, at time.Time) error
}
