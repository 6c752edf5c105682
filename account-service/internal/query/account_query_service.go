package query

import (
	"context"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

// AccountViews is the cached read model.
type AccountViews interface {
	GetByID(ctx context.Context, accountID string) (*models.AccountView, error)
	ListByUserID(ctx context.Context, userID string) ([]models.AccountView, error)
}

// BalanceReader answers from committed ledger state, bypassing the cache.
type BalanceReader interface {
	GetBalance(ctx context.Context, accountID string) (models.BalanceView, error)
}

type AccountQueryService struct {
	views    AccountViews
	balances BalanceReader
}

func NewAccountQueryService(views AccountViews, balances BalanceReader) *AccountQueryService {
	return &AccountQueryService{views: views, balances: balances}
}

// GetAccount fetches a single account view and enforces ownership.
func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	view, err := s.views.GetByID(ctx, q.AccountID)
	if err != nil {
		return nil, err
	}
	// The view carries UserID (json:"-") for this check.
	if view.UserID != q.RequestingUserID {
		return nil, errs.Forbidden("You can only access your own accounts")
	}
	return view, nil
}

func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	return s.views.ListByUserID(ctx, q.UserID)
}

func (s *AccountQueryService) GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (models.BalanceView, error) {
	return s.balances.GetBalance(ctx, q.AccountID)
}

// GetAccountOwner is the internal lookup behind ownership checks in other
// services. It does not check the caller.
func (s *AccountQueryService) GetAccountOwner(ctx context.Context, accountID string) (models.AccountOwner, error) {
	view, err := s.views.GetByID(ctx, accountID)
	if err != nil {
		return models.AccountOwner{}, err
	}
	return models.AccountOwner{AccountID: view.ID, UserID: view.UserID}, nil
}
