package repository

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
	sharedredis "github.com/eaglebank/wallet/shared/redis"
)

// AccountViewKeyPrefix is shared with transaction-service, which reads the
// same entries for ownership checks.
const AccountViewKeyPrefix = "account:view:"

// AccountCacheEntry is the Redis representation of an account. Unlike
// models.AccountView it serialises UserID.
type AccountCacheEntry struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Name      string       `json:"name"`
	Balance   money.Amount `json:"balance"`
	Currency  string       `json:"currency"`
	CreatedAt time.Time    `json:"createdTimestamp"`
	UpdatedAt time.Time    `json:"updatedTimestamp"`
}

// AccountSource is the authoritative store behind the read model.
type AccountSource interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Account, error)
}

// AccountReadRepository serves account views from Redis first and falls back
// to the ledger store, warming the cache on every cold read.
type AccountReadRepository struct {
	source AccountSource
	cache  *sharedredis.ViewCache[AccountCacheEntry]
}

func NewAccountReadRepository(source AccountSource, redisClient *goredis.Client, ttl time.Duration, logger *zap.Logger) *AccountReadRepository {
	return &AccountReadRepository{
		source: source,
		cache:  sharedredis.NewViewCache[AccountCacheEntry](redisClient, AccountViewKeyPrefix, ttl, logger),
	}
}

func entryToView(e *AccountCacheEntry) *models.AccountView {
	return &models.AccountView{
		ID:        e.ID,
		UserID:    e.UserID,
		Name:      e.Name,
		Balance:   e.Balance,
		Currency:  e.Currency,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func accountToEntry(a *models.Account) *AccountCacheEntry {
	return &AccountCacheEntry{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name,
		Balance:   a.Balance,
		Currency:  a.Currency,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// GetByID returns the view including UserID so callers can enforce ownership.
func (r *AccountReadRepository) GetByID(ctx context.Context, accountID string) (*models.AccountView, error) {
	if entry, ok := r.cache.Get(ctx, accountID); ok {
		return entryToView(entry), nil
	}

	account, err := r.source.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	entry := accountToEntry(account)
	r.cache.Set(ctx, accountID, entry)
	return entryToView(entry), nil
}

// ListByUserID always reads the source; lists are not cached.
func (r *AccountReadRepository) ListByUserID(ctx context.Context, userID string) ([]models.AccountView, error) {
	accounts, err := r.source.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]models.AccountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, *entryToView(accountToEntry(&accounts[i])))
	}
	return views, nil
}

// Invalidate drops the cached view after a balance change. The next read
// repopulates it from committed state.
func (r *AccountReadRepository) Invalidate(ctx context.Context, accountID string) {
	r.cache.Delete(ctx, accountID)
}
