package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/errs"
)

// TransferLocker hands out redsync mutexes. A lock is tried once; contention
// is reported as a retryable transfer_in_progress error rather than waited on.
type TransferLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger *zap.Logger
}

// NewTransferLocker creates a locker. expiry must outlast the slowest
// transfer, otherwise a second request could start while the first is still
// running.
func NewTransferLocker(client *goredislib.Client, expiry time.Duration, logger *zap.Logger) *TransferLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		logger: logger,
	}
}

func (l *TransferLocker) Lock(ctx context.Context, key string) (func(context.Context), error) {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, errs.TransferInProgress(err)
		}
		return nil, errs.Upstream("transfer lock unavailable", fmt.Errorf("lock %s: %w", key, err))
	}

	return func(ctx context.Context) {
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			l.logger.Warn("failed to release transfer lock",
				zap.String("lock_key", key), zap.Bool("unlock_ok", ok), zap.Error(err))
		}
	}, nil
}

// isContention tells a lock held elsewhere apart from a Redis failure.
// ErrFailed covers a quorum lost to timing or a cancelled ctx.
func isContention(err error) bool {
	var taken *redsync.ErrTaken
	var nodeTaken *redsync.ErrNodeTaken
	return errors.As(err, &taken) || errors.As(err, &nodeTaken) || errors.Is(err, redsync.ErrFailed)
}
