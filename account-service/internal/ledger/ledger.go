package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

type Ledger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func New(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// GetBalance reads the committed balance.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (models.BalanceView, error) {
	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return models.BalanceView{}, err
	}
	return models.BalanceView{AccountID: account.ID, Balance: account.Balance, Version: account.Version}, nil
}

// Credit increases the balance of an existing account.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount money.Amount) (*models.Account, error) {
	if !amount.IsPositive() {
		return nil, errs.Validation("amount must be greater than zero")
	}

	var updated *models.Account
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		account, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := credit(account, amount); err != nil {
			return err
		}
		if err := tx.SaveBalance(ctx, account); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Debit decreases the balance, failing with InsufficientFunds rather than
// going below zero. The check runs on the locked row.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount money.Amount) (*models.Account, error) {
	if !amount.IsPositive() {
		return nil, errs.Validation("amount must be greater than zero")
	}

	var updated *models.Account
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		account, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := debit(account, amount); err != nil {
			return err
		}
		if err := tx.SaveBalance(ctx, account); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type TransferRequest struct {
	TransferID    string
	FromAccountID string
	ToAccountID   string
	Amount        money.Amount
}

type TransferResult struct {
	From *models.Account
	To   *models.Account
	// AlreadyApplied is set when this transfer id had been committed before;
	// nothing was changed by this call.
	AlreadyApplied bool
}

// AtomicTransfer moves amount between two accounts as one unit, at most once
// per transfer id.
func (l *Ledger) AtomicTransfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	switch {
	case req.TransferID == "":
		return TransferResult{}, errs.Validation("transferId is required")
	case req.FromAccountID == "" || req.ToAccountID == "":
		return TransferResult{}, errs.Validation("both accounts are required")
	case req.FromAccountID == req.ToAccountID:
		return TransferResult{}, errs.Validation("Cannot transfer money to yourself.")
	case !req.Amount.IsPositive():
		return TransferResult{}, errs.Validation("amount must be greater than zero")
	}

	record := models.LedgerTransfer{
		TransferID:    req.TransferID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		CreatedAt:     l.now(),
	}

	var result TransferResult
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := lockInOrder(ctx, tx, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return err
		}
		from, to := locked[req.FromAccountID], locked[req.ToAccountID]

		existing, err := tx.FindTransfer(ctx, req.TransferID)
		if err != nil {
			return err
		}
		if existing != nil {
			if !existing.SameAs(record) {
				return errs.IdempotencyConflict("transferId was already used for a different transfer")
			}
			result = TransferResult{From: from, To: to, AlreadyApplied: true}
			return nil
		}

		if err := debit(from, req.Amount); err != nil {
			return err
		}
		if err := credit(to, req.Amount); err != nil {
			return err
		}

		if err := tx.SaveBalance(ctx, from); err != nil {
			return err
		}
		if err := tx.SaveBalance(ctx, to); err != nil {
			return err
		}
		if err := tx.InsertTransfer(ctx, &record); err != nil {
			return err
		}
		result = TransferResult{From: from, To: to}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	if result.AlreadyApplied {
		logging.FromContext(ctx, l.logger).Info("transfer replay ignored",
			zap.String("transfer_id", req.TransferID))
	}
	return result, nil
}

// lockInOrder locks the given accounts in ascending id order so two
// transfers over the same pair always queue on the same first lock.
func lockInOrder(ctx context.Context, tx Tx, a, b string) (map[string]*models.Account, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	locked := make(map[string]*models.Account, 2)
	for _, id := range []string{first, second} {
		account, err := tx.LockAccount(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", id, err)
		}
		locked[id] = account
	}
	return locked, nil
}

// credit refuses a balance the NUMERIC(15,2) column could not store.
func credit(account *models.Account, amount money.Amount) error {
	next := account.Balance.Add(amount)
	if money.MaxAmount.LessThan(next) {
		return errs.Validation("balance would exceed the maximum amount")
	}
	account.Balance = next
	return nil
}

func debit(account *models.Account, amount money.Amount) error {
	rest, err := account.Balance.Sub(amount)
	if err != nil {
		return errs.InsufficientFunds()
	}
	account.Balance = rest
	return nil
}
