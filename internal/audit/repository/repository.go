package repository

import (
	"context"

	"stepup-gateway/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	ListByAdmin(ctx context.Context, adminID string, limit, offset int32) ([]*domain.AuditLog, error)
	ListRecent(ctx context.Context, limit, offset int32) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
