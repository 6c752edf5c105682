package cqrs

import (
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

// CreateUserCommand registers the authenticated user in the recipient
// directory. UserID is the token subject.
type CreateUserCommand struct {
	UserID string
	Name   string
	Email  string
}

// LinkAccountCommand records the wallet transfers to a user are credited to.
type LinkAccountCommand struct {
	UserID    string
	AccountID string
}

type OpenAccountCommand struct {
	UserID string
	Name   string
}

// DepositCommand and WithdrawCommand are single-account balance movements
// issued by the account owner.
type DepositCommand struct {
	AccountID        string
	RequestingUserID string
	Amount           money.Amount
}

type WithdrawCommand struct {
	AccountID        string
	RequestingUserID string
	Amount           money.Amount
}

// AdjustBalanceCommand is the internal credit/debit primitive used by
// trusted services; it skips ownership checks.
type AdjustBalanceCommand struct {
	AccountID string
	Amount    money.Amount
}

type TransferFundsCommand struct {
	TransferID    string
	FromAccountID string
	ToAccountID   string
	Amount        money.Amount
}

type AppendMovementCommand struct {
	IdempotencyKey string
	Record         models.MovementRecord
}

type ExecuteTransferCommand struct {
	RequestingUserID string
	Intent           models.TransferIntent
}
