package repository

import (
	"context"
	"database/sql"
	"time"

	"stepup-gateway/internal/recovery/domain"
)

// PostgresRepository stores recovery codes in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a recovery code repository using the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ReplaceForAdmin deletes existing codes for the admin and inserts the new set
// in one transaction.
func (r *PostgresRepository) ReplaceForAdmin(ctx context.Context, adminID string, codes []*domain.RecoveryCode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE admin_id = $1`, adminID); err != nil {
		return err
	}
	for _, c := range codes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recovery_codes (id, admin_id, code_hash, created_at) VALUES ($1, $2, $3, $4)`,
			c.ID, c.AdminID, c.CodeHash, c.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListActiveByAdmin returns the administrator's unused codes.
func (r *PostgresRepository) ListActiveByAdmin(ctx context.Context, adminID string) ([]*domain.RecoveryCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, admin_id, code_hash, used_at, created_at
		 FROM recovery_codes
		 WHERE admin_id = $1 AND used_at IS NULL
		 ORDER BY created_at`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RecoveryCode
	for rows.Next() {
		var c domain.RecoveryCode
		var usedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.AdminID, &c.CodeHash, &usedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		if usedAt.Valid {
			t := usedAt.Time
			c.UsedAt = &t
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// MarkUsed records the redemption time for the code.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE recovery_codes SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, at)
	return err
}
