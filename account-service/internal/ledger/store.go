// Package ledger is the only code allowed to change an account balance. Every
// mutation follows the same protocol: open a unit of work, lock the affected
// accounts in ascending id order, re-read them under the lock, verify, write,
// commit. Storage engines implement Store and Tx.
package ledger

import (
	"context"

	"github.com/eaglebank/wallet/shared/models"
)

// Store is a storage engine for accounts.
type Store interface {
	// GetAccount reads committed state without locking. It returns an
	// errs NotFound error for unknown ids.
	GetAccount(ctx context.Context, id string) (*models.Account, error)

	// WithinTx runs fn in one atomic unit of work. Nothing fn writes is
	// visible to other readers unless fn returns nil and the commit succeeds.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is a unit of work in progress.
type Tx interface {
	// LockAccount takes the exclusive lock on id and returns its current
	// state. The wait is bounded; a timeout is an errs Upstream error.
	LockAccount(ctx context.Context, id string) (*models.Account, error)

	// SaveBalance persists account.Balance for a locked account and
	// increments its version.
	SaveBalance(ctx context.Context, account *models.Account) error

	// FindTransfer returns the applied transfer with this id, or nil.
	FindTransfer(ctx context.Context, transferID string) (*models.LedgerTransfer, error)

	InsertTransfer(ctx context.Context, transfer *models.LedgerTransfer) error
}
