// Package client wraps the internal HTTP APIs the transfer saga depends on.
package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/httpclient"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

// RecipientClient resolves payees through user-service.
type RecipientClient struct {
	http *httpclient.Client
}

func NewRecipientClient(c *httpclient.Client) *RecipientClient {
	return &RecipientClient{http: c}
}

func (c *RecipientClient) ResolveRecipient(ctx context.Context, email string) (models.RecipientView, error) {
	var recipient models.RecipientView
	path := "/internal/users/resolve?email=" + url.QueryEscape(email)
	if _, err := c.http.Do(ctx, http.MethodGet, path, nil, nil, &recipient); err != nil {
		return models.RecipientView{}, err
	}
	return recipient, nil
}

// LedgerClient calls account-service's ledger primitives.
type LedgerClient struct {
	http *httpclient.Client
}

func NewLedgerClient(c *httpclient.Client) *LedgerClient {
	return &LedgerClient{http: c}
}

type transferRequest struct {
	TransferID    string       `json:"transferId"`
	FromAccountID string       `json:"fromAccountId"`
	ToAccountID   string       `json:"toAccountId"`
	Amount        money.Amount `json:"amount"`
}

type transferResponse struct {
	AlreadyApplied bool `json:"alreadyApplied"`
}

func (c *LedgerClient) AtomicTransfer(ctx context.Context, cmd cqrs.TransferFundsCommand) (bool, error) {
	var resp transferResponse
	_, err := c.http.Do(ctx, http.MethodPost, "/internal/transfers", nil, transferRequest{
		TransferID:    cmd.TransferID,
		FromAccountID: cmd.FromAccountID,
		ToAccountID:   cmd.ToAccountID,
		Amount:        cmd.Amount,
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.AlreadyApplied, nil
}

func (c *LedgerClient) GetOwner(ctx context.Context, accountID string) (models.AccountOwner, error) {
	var owner models.AccountOwner
	if _, err := c.http.Do(ctx, http.MethodGet, "/internal/accounts/"+url.PathEscape(accountID), nil, nil, &owner); err != nil {
		return models.AccountOwner{}, err
	}
	return owner, nil
}
