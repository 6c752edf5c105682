package saga

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

type RecoveryConfig struct {
	// Interval between sweeps.
	Interval time.Duration
	// Idle is how long a record must sit in MOVING_FUNDS or RECORDING before
	// the sweep takes it over from the request that left it there.
	Idle      time.Duration
	BatchSize int64
}

func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{Interval: 30 * time.Second, Idle: 2 * time.Minute, BatchSize: 50}
}

// Recover settles transfers whose request gave up after the saga reached
// MOVING_FUNDS or RECORDING. Each one is locked and re-read first; a transfer
// that another request is driving is skipped. It returns how many reached a
// final state.
func (c *Coordinator) Recover(ctx context.Context, idle time.Duration, limit int64) (int, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.recover")
	defer span.End()

	ids, err := c.store.Stale(ctx, c.now().Add(-idle), limit)
	if err != nil {
		endWithError(span, err)
		return 0, fmt.Errorf("list stale transfers: %w", err)
	}
	span.SetAttributes(attribute.Int("transfer.stale", len(ids)))

	settled := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		done, err := c.recoverOne(ctx, id)
		if err != nil {
			c.logger.Warn("transfer still pending after recovery attempt",
				zap.String("transfer_id", id), zap.Error(err))
			continue
		}
		if done {
			settled++
		}
	}
	span.SetAttributes(attribute.Int("transfer.settled", settled))
	return settled, nil
}

func (c *Coordinator) recoverOne(ctx context.Context, transferID string) (bool, error) {
	unlock, err := c.locker.Lock(ctx, LockKey(transferID))
	if err != nil {
		if errs.ReasonOf(err) == errs.ReasonTransferInProgress {
			return false, nil
		}
		return false, err
	}
	defer unlock(context.WithoutCancel(ctx))

	record, err := c.store.Get(ctx, transferID)
	if err != nil || record == nil {
		return false, err
	}

	var outcome models.TransferOutcome
	switch record.State {
	case StateMovingFunds:
		if record.ToAccountID == "" {
			return false, nil
		}
		outcome, err = c.settle(ctx, record)
	case StateRecording:
		outcome, err = c.record(ctx, record)
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}

	c.logger.Info("recovered transfer",
		zap.String("transfer_id", transferID),
		zap.String("status", string(outcome.Status)),
		zap.String("state", string(record.State)))
	return record.State.Terminal(), nil
}

// RecoveryLoop sweeps for stale transfers every cfg.Interval until ctx is
// cancelled.
func (c *Coordinator) RecoveryLoop(cfg RecoveryConfig) func(ctx context.Context) error {
	def := DefaultRecoveryConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Idle <= 0 {
		cfg.Idle = def.Idle
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}

	return func(ctx context.Context) error {
		c.logger.Info("transfer recovery started",
			zap.Duration("interval", cfg.Interval), zap.Duration("idle", cfg.Idle))

		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("transfer recovery stopping")
				return ctx.Err()
			case <-ticker.C:
				settled, err := c.Recover(ctx, cfg.Idle, cfg.BatchSize)
				if err != nil && ctx.Err() == nil {
					c.logger.Warn("transfer recovery sweep failed", zap.Error(err))
				}
				if settled > 0 {
					c.logger.Info("transfer recovery sweep settled transfers", zap.Int("settled", settled))
				}
			}
		}
	}
}
