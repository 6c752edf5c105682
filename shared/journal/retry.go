package journal

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eaglebank/wallet/shared/errs"
)

type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	AttemptTimeout  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		AttemptTimeout:  2 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.AttemptTimeout == 0 {
		p.AttemptTimeout = DefaultRetryPolicy().AttemptTimeout
	}
	return p
}

// Do calls op until it succeeds, fails with an error errs.Retryable rejects,
// or the attempts run out. Each attempt gets its own AttemptTimeout. The last
// error is returned; a cancelled ctx returns ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	p = p.normalized()

	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)

	return backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()

		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if !errs.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
