package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/eaglebank/wallet/account-service/internal/ledger"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

const accountColumns = `id, user_id, name, balance, currency, version, created_at, updated_at`

// PostgresLedgerStore is the PostgreSQL ledger engine (source of truth for
// balances). Row locks are taken with SELECT ... FOR UPDATE under a
// transaction-local lock_timeout.
type PostgresLedgerStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresLedgerStore(db *sql.DB, lockTimeout time.Duration) *PostgresLedgerStore {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &PostgresLedgerStore{db: db, lockTimeout: lockTimeout}
}

var _ ledger.Store = (*PostgresLedgerStore)(nil)

func (s *PostgresLedgerStore) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, name, balance, currency, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.UserID, account.Name, account.Balance,
		account.Currency, account.Version, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return classify(err, "failed to create account")
	}
	return nil
}

func (s *PostgresLedgerStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *PostgresLedgerStore) ListByUserID(ctx context.Context, userID string) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, classify(err, "failed to list accounts")
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list accounts")
	}
	return accounts, nil
}

func (s *PostgresLedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "failed to begin transaction")
	}

	// SET does not take bind parameters.
	setLockTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, setLockTimeout); err != nil {
		_ = tx.Rollback()
		return classify(err, "failed to set lock timeout")
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "failed to commit transaction")
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func (t *pgTx) SaveBalance(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET balance = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version, updated_at
	`
	err := t.tx.QueryRowContext(ctx, query, account.ID, account.Balance).Scan(&account.Version, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound("Account not found")
	}
	if err != nil {
		return classify(err, "failed to update balance")
	}
	return nil
}

func (t *pgTx) FindTransfer(ctx context.Context, transferID string) (*models.LedgerTransfer, error) {
	query := `
		SELECT transfer_id, from_account_id, to_account_id, amount, created_at
		FROM ledger_transfers
		WHERE transfer_id = $1
	`
	var lt models.LedgerTransfer
	err := t.tx.QueryRowContext(ctx, query, transferID).Scan(
		&lt.TransferID, &lt.FromAccountID, &lt.ToAccountID, &lt.Amount, &lt.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to read transfer")
	}
	return &lt, nil
}

func (t *pgTx) InsertTransfer(ctx context.Context, transfer *models.LedgerTransfer) error {
	query := `
		INSERT INTO ledger_transfers (transfer_id, from_account_id, to_account_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := t.tx.ExecContext(ctx, query,
		transfer.TransferID, transfer.FromAccountID, transfer.ToAccountID, transfer.Amount, transfer.CreatedAt,
	)
	if err != nil {
		return classify(err, "failed to record transfer")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance, &a.Currency, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("Account not found")
	}
	if err != nil {
		return nil, classify(err, "failed to read account")
	}
	return &a, nil
}

// classify maps driver failures onto the error taxonomy. Lock waits,
// deadlocks and cancellations are transient; the message never carries
// storage detail.
func classify(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", "40P01", "57014", "40001":
			return errs.Upstream("Account is busy, please retry", fmt.Errorf("%s: %w", msg, err))
		case "23505":
			return errs.IdempotencyConflict("resource already exists")
		case "23514":
			return errs.InsufficientFunds()
		case "22003":
			return errs.Validation("amount is out of range")
		}
	}
	return errs.Upstream("ledger storage unavailable", fmt.Errorf("%s: %w", msg, err))
}
