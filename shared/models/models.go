package models

import (
	"strings"
	"time"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/money"
)

// User is a recipient directory entry. AccountID is the wallet transfers to
// this user's email are credited to; it is empty until an account is opened.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AccountID string    `json:"accountId,omitempty"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

// NormalizeEmail is the directory's canonical form for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Account is the ledger row. Balance is never negative; Version increases on
// every committed balance change.
type Account struct {
	ID        string       `json:"id"`
	UserID    string       `json:"-"`
	Name      string       `json:"name"`
	Balance   money.Amount `json:"balance"`
	Currency  string       `json:"currency"`
	Version   int64        `json:"version"`
	CreatedAt time.Time    `json:"createdTimestamp"`
	UpdatedAt time.Time    `json:"updatedTimestamp"`
}

// LedgerTransfer is the ledger's record that a transfer id has been applied.
// It commits in the same transaction as the two balance changes.
type LedgerTransfer struct {
	TransferID    string       `json:"transferId"`
	FromAccountID string       `json:"fromAccountId"`
	ToAccountID   string       `json:"toAccountId"`
	Amount        money.Amount `json:"amount"`
	CreatedAt     time.Time    `json:"createdTimestamp"`
}

// SameAs reports whether t describes the same movement of funds as other.
func (t LedgerTransfer) SameAs(other LedgerTransfer) bool {
	return t.TransferID == other.TransferID &&
		t.FromAccountID == other.FromAccountID &&
		t.ToAccountID == other.ToAccountID &&
		t.Amount.Equal(other.Amount)
}

type MovementKind string

const (
	MovementDeposit     MovementKind = "deposit"
	MovementWithdrawal  MovementKind = "withdrawal"
	MovementTransferOut MovementKind = "transfer_out"
	MovementTransferIn  MovementKind = "transfer_in"
)

func (k MovementKind) Valid() bool {
	switch k {
	case MovementDeposit, MovementWithdrawal, MovementTransferOut, MovementTransferIn:
		return true
	}
	return false
}

func (k MovementKind) IsTransfer() bool {
	return k == MovementTransferOut || k == MovementTransferIn
}

// MovementRecord is one immutable journal entry for one account.
type MovementRecord struct {
	ID                    string       `json:"id"`
	AccountID             string       `json:"accountId"`
	Kind                  MovementKind `json:"kind"`
	Amount                money.Amount `json:"amount"`
	CounterpartyAccountID string       `json:"counterpartyAccountId,omitempty"`
	Reference             string       `json:"reference,omitempty"`
	Timestamp             time.Time    `json:"timestamp"`
}

// Validate applies the journal's call-time checks. It does not look the
// account up.
func (r MovementRecord) Validate() error {
	if r.AccountID == "" {
		return errs.Validation("accountId is required")
	}
	if !r.Kind.Valid() {
		return errs.Validation("kind must be one of deposit, withdrawal, transfer_out, transfer_in")
	}
	if !r.Amount.IsPositive() {
		return errs.Validation("amount must be greater than zero")
	}
	if r.Kind.IsTransfer() && r.CounterpartyAccountID == "" {
		return errs.Validation("counterpartyAccountId is required for transfers")
	}
	if !r.Kind.IsTransfer() && r.CounterpartyAccountID != "" {
		return errs.Validation("counterpartyAccountId is only allowed for transfers")
	}
	return nil
}

// TransferIntent is a client's request to move funds to the account behind an email.
type TransferIntent struct {
	TransferID     string       `json:"transferId"`
	FromAccountID  string       `json:"fromAccountId"`
	ToAccountEmail string       `json:"toAccountEmail"`
	Amount         money.Amount `json:"amount"`
}

func (i TransferIntent) Validate() error {
	switch {
	case strings.TrimSpace(i.TransferID) == "":
		return errs.Validation("transferId is required")
	case i.FromAccountID == "":
		return errs.Validation("fromAccountId is required")
	case strings.TrimSpace(i.ToAccountEmail) == "":
		return errs.Validation("toAccountEmail is required")
	case !i.Amount.IsPositive():
		return errs.Validation("amount must be greater than zero")
	}
	return nil
}

type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferRejected  TransferStatus = "rejected"
	TransferPartial   TransferStatus = "partial"
)

// TransferOutcome is the terminal result reported to the caller. Reason is a
// stable code; Message is safe to show to users.
type TransferOutcome struct {
	TransferID string         `json:"transferId"`
	Status     TransferStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// FundsMoved reports whether the outcome implies the ledger applied the transfer.
func (o TransferOutcome) FundsMoved() bool {
	return o.Status == TransferCompleted || o.Status == TransferPartial
}
