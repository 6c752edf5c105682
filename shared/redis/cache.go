package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ViewCache is a JSON-backed Redis cache for read model projections of type T.
// Keys are prefix+id. A zero TTL stores keys without expiry.
//
// The cache is never authoritative: every write error is logged and swallowed,
// and callers fall back to the owning store on a miss.
type ViewCache[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *ViewCache[T]) key(id string) string { return c.prefix + id }

// Get returns (nil, false) on any miss or decode error.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("view cache: corrupt entry", zap.String("key", c.key(id)), zap.Error(err))
		return nil, false
	}
	return &v, true
}

func (c *ViewCache[T]) Set(ctx context.Context, id string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("view cache: marshal failed", zap.String("key", c.key(id)), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		c.logger.Warn("view cache: write failed", zap.String("key", c.key(id)), zap.Error(err))
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("view cache: delete failed", zap.String("key", c.key(id)), zap.Error(err))
	}
}
