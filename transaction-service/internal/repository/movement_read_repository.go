package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
	sharedredis "github.com/eaglebank/wallet/shared/redis"
)

const movementViewKeyPrefix = "movement:view:"

// MovementReadRepository serves journal reads. Single records are cached in
// Redis; they are immutable, so entries never need invalidating.
type MovementReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.MovementRecord]
}

func NewMovementReadRepository(db *sql.DB, redisClient *goredis.Client, ttl time.Duration, logger *zap.Logger) *MovementReadRepository {
	return &MovementReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.MovementRecord](redisClient, movementViewKeyPrefix, ttl, logger),
	}
}

func cacheID(accountID, movementID string) string { return accountID + ":" + movementID }

// GetByID returns a movement of accountID, trying Redis first.
func (r *MovementReadRepository) GetByID(ctx context.Context, accountID, movementID string) (*models.MovementRecord, error) {
	if record, ok := r.cache.Get(ctx, cacheID(accountID, movementID)); ok {
		return record, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE id = $1 AND account_id = $2`, movementID, accountID)
	record, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("Transaction not found")
	}
	if err != nil {
		return nil, classify(err, "failed to get movement")
	}

	r.Cache(ctx, record)
	return record, nil
}

// History returns the journal of an account, most recent first.
func (r *MovementReadRepository) History(ctx context.Context, accountID string) ([]models.MovementRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE account_id = $1 ORDER BY occurred_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, classify(err, "failed to list movements")
	}
	defer rows.Close()

	records := []models.MovementRecord{}
	for rows.Next() {
		record, err := scanMovement(rows)
		if err != nil {
			return nil, classify(err, "failed to scan movement")
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list movements")
	}
	return records, nil
}

func (r *MovementReadRepository) Cache(ctx context.Context, record *models.MovementRecord) {
	r.cache.Set(ctx, cacheID(record.AccountID, record.ID), record)
}
