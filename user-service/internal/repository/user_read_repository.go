package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
	sharedredis "github.com/eaglebank/wallet/shared/redis"
)

const userViewKeyPrefix = "user:view:"

const userColumns = `id, name, email, account_id, created_at, updated_at`

// UserReadRepository handles all read operations for users.
// It uses Redis as the primary read store, falling back to PostgreSQL on a miss.
// Lookups by email always hit PostgreSQL so a freshly linked account is seen
// by the next transfer.
type UserReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.UserView]
}

func NewUserReadRepository(db *sql.DB, redisClient *goredis.Client, ttl time.Duration, logger *zap.Logger) *UserReadRepository {
	return &UserReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.UserView](redisClient, userViewKeyPrefix, ttl, logger),
	}
}

func (r *UserReadRepository) GetByID(ctx context.Context, id string) (*models.UserView, error) {
	if view, ok := r.cache.Get(ctx, id); ok {
		return view, nil
	}

	user, err := r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	view := toView(user)
	r.cache.Set(ctx, id, view)
	return view, nil
}

// GetByEmail expects an already normalised address.
func (r *UserReadRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserReadRepository) CacheUserView(ctx context.Context, user *models.User) {
	r.cache.Set(ctx, user.ID, toView(user))
}

func (r *UserReadRepository) InvalidateUserView(ctx context.Context, userID string) {
	r.cache.Delete(ctx, userID)
}

func (r *UserReadRepository) scanOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	var accountID sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &accountID, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("User not found")
	}
	if err != nil {
		return nil, errs.Upstream("user storage unavailable", fmt.Errorf("failed to read user: %w", err))
	}
	user.AccountID = accountID.String
	return &user, nil
}

func toView(u *models.User) *models.UserView {
	return &models.UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AccountID: u.AccountID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
