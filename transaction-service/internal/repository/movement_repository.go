package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

const movementColumns = `id, account_id, kind, amount, counterparty_account_id, reference, occurred_at`

// MovementWriteRepository appends to the journal. Rows are never updated or
// deleted; the idempotency key makes every append safe to repeat.
type MovementWriteRepository struct {
	db *sql.DB
}

func NewMovementWriteRepository(db *sql.DB) *MovementWriteRepository {
	return &MovementWriteRepository{db: db}
}

// Append stores record under key. When the key is already taken it returns
// the stored record and created=false.
func (r *MovementWriteRepository) Append(ctx context.Context, key string, record models.MovementRecord) (*models.MovementRecord, bool, error) {
	query := `
		INSERT INTO movements (id, idempotency_key, account_id, kind, amount, counterparty_account_id, reference, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING ` + movementColumns
	row := r.db.QueryRowContext(ctx, query,
		record.ID, key, record.AccountID, string(record.Kind), record.Amount,
		nullString(record.CounterpartyAccountID), nullString(record.Reference), record.Timestamp,
	)
	stored, err := scanMovement(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, classify(err, "failed to append movement")
	}

	existing, err := r.GetByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *MovementWriteRepository) GetByKey(ctx context.Context, key string) (*models.MovementRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+movementColumns+` FROM movements WHERE idempotency_key = $1`, key)
	record, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("Movement not found")
	}
	if err != nil {
		return nil, classify(err, "failed to read movement")
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovement(row rowScanner) (*models.MovementRecord, error) {
	var (
		m            models.MovementRecord
		kind         string
		counterparty sql.NullString
		reference    sql.NullString
	)
	if err := row.Scan(&m.ID, &m.AccountID, &kind, &m.Amount, &counterparty, &reference, &m.Timestamp); err != nil {
		return nil, err
	}
	m.Kind = models.MovementKind(kind)
	m.CounterpartyAccountID = counterparty.String
	m.Reference = reference.String
	return &m, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// classify maps driver failures onto the error taxonomy without exposing
// storage detail to clients.
func classify(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514", "22P02", "22003":
			return errs.Validation("movement violates journal constraints")
		}
	}
	return errs.Upstream("journal storage unavailable", fmt.Errorf("%s: %w", msg, err))
}
