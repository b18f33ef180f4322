package repository

import (
	"context"
	"database/sql"
	"errors"

	"stepup-gateway/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const auditColumns = "id, admin_id, session_id, action, resource, ip, metadata, created_at"

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+auditColumns+" FROM audit_logs WHERE id = $1", id)
	a, err := scanAuditLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListByAdmin returns audit logs for the given admin, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByAdmin(ctx context.Context, adminID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_logs WHERE admin_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		adminID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuditLogs(rows)
}

// ListRecent returns the most recent audit logs across all admins, paginated by limit and offset.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuditLogs(rows)
}

// Create persists the audit log. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	sid := sql.NullString{String: a.SessionID, Valid: a.SessionID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO audit_logs (id, admin_id, session_id, action, resource, ip, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		a.ID, a.AdminID, sid, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(row rowScanner) (*domain.AuditLog, error) {
	var a domain.AuditLog
	var sid, meta sql.NullString
	if err := row.Scan(&a.ID, &a.AdminID, &sid, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.SessionID = sid.String
	a.Metadata = meta.String
	return &a, nil
}

func collectAuditLogs(rows *sql.Rows) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
