package models

import (
	"time"

	"github.com/eaglebank/wallet/shared/money"
)

// UserView is the read-optimised projection of a directory entry.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AccountID string    `json:"accountId,omitempty"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

// RecipientView is what the directory reveals to a payer: enough to credit
// the account, nothing more.
type RecipientView struct {
	UserID    string `json:"userId"`
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
}

// AccountView is the read-optimised projection of an account.
// UserID is populated for ownership checks but never serialised to the API response.
type AccountView struct {
	ID        string       `json:"id"`
	UserID    string       `json:"-"`
	Name      string       `json:"name"`
	Balance   money.Amount `json:"balance"`
	Currency  string       `json:"currency"`
	CreatedAt time.Time    `json:"createdTimestamp"`
	UpdatedAt time.Time    `json:"updatedTimestamp"`
}

// BalanceView is the ledger's authoritative balance answer.
type BalanceView struct {
	AccountID string       `json:"accountId"`
	Balance   money.Amount `json:"balance"`
	Version   int64        `json:"version"`
}

// AccountOwner answers who owns an account, for services that enforce
// ownership on data they hold about it.
type AccountOwner struct {
	AccountID string `json:"accountId"`
	UserID    string `json:"userId"`
}
