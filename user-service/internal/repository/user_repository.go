package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

const (
	emailConstraint   = "users_email_key"
	primaryConstraint = "users_pkey"
)

// UserWriteRepository handles all state-mutating operations for users.
// It operates exclusively against the PostgreSQL write store (source of truth).
type UserWriteRepository struct {
	db *sql.DB
}

func NewUserWriteRepository(db *sql.DB) *UserWriteRepository {
	return &UserWriteRepository{db: db}
}

func (r *UserWriteRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, account_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, nullString(user.AccountID), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == primaryConstraint {
				return errs.Validation("User already exists")
			}
			return errs.Validation("Email already registered")
		}
		return errs.Upstream("user storage unavailable", fmt.Errorf("failed to create user: %w", err))
	}
	return nil
}

// SetAccountID links the user's first account. It reports false when the user
// is unknown or already linked; the first account opened stays the recipient
// account.
func (r *UserWriteRepository) SetAccountID(ctx context.Context, userID, accountID string) (bool, error) {
	query := `UPDATE users SET account_id = $2, updated_at = NOW() WHERE id = $1 AND account_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, userID, accountID)
	if err != nil {
		return false, errs.Upstream("user storage unavailable", fmt.Errorf("failed to link account: %w", err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
