package repository

import (
	"context"
	"net/http"
	"net/url"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/httpclient"
	"github.com/eaglebank/wallet/shared/models"
	sharedredis "github.com/eaglebank/wallet/shared/redis"
)

// accountViewKeyPrefix is where account-service keeps its account views.
const accountViewKeyPrefix = "account:view:"

// accountEntry decodes the fields of account-service's cached view that
// ownership checks need.
type accountEntry struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// AccountRepository answers who owns an account. It reads account-service's
// Redis read model and falls back to its internal API on a miss, which also
// warms that cache.
type AccountRepository struct {
	cache  *sharedredis.ViewCache[accountEntry]
	client *httpclient.Client
}

func NewAccountRepository(redisClient *goredis.Client, client *httpclient.Client, logger *zap.Logger) *AccountRepository {
	return &AccountRepository{
		cache:  sharedredis.NewViewCache[accountEntry](redisClient, accountViewKeyPrefix, 0, logger),
		client: client,
	}
}

func (r *AccountRepository) GetOwner(ctx context.Context, accountID string) (models.AccountOwner, error) {
	if entry, ok := r.cache.Get(ctx, accountID); ok && entry.UserID != "" {
		return models.AccountOwner{AccountID: entry.ID, UserID: entry.UserID}, nil
	}

	var owner models.AccountOwner
	if _, err := r.client.Do(ctx, http.MethodGet, "/internal/accounts/"+url.PathEscape(accountID), nil, nil, &owner); err != nil {
		return models.AccountOwner{}, err
	}
	return owner, nil
}
