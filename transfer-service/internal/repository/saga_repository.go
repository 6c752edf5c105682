package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/eaglebank/wallet/transfer-service/internal/saga"
)

const (
	sagaKeyPrefix = "transfer:saga:"
	// inflightKey scores transferIds in MOVING_FUNDS or RECORDING by the
	// unix millis of their last save.
	inflightKey = "transfer:saga:inflight"
)

// SagaStateRepository keeps saga records in Redis. Entries expire after ttl,
// after which a replay runs from the start and relies on the ledger's
// transfer row to avoid moving funds twice.
type SagaStateRepository struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewSagaStateRepository(client *goredis.Client, ttl time.Duration) *SagaStateRepository {
	return &SagaStateRepository{client: client, ttl: ttl}
}

func (r *SagaStateRepository) Get(ctx context.Context, transferID string) (*saga.Record, error) {
	data, err := r.client.Get(ctx, sagaKeyPrefix+transferID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get saga %s: %w", transferID, err)
	}
	var record saga.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode saga %s: %w", transferID, err)
	}
	return &record, nil
}

func (r *SagaStateRepository) Save(ctx context.Context, record *saga.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode saga %s: %w", record.TransferID, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, sagaKeyPrefix+record.TransferID, data, r.ttl)
		if inFlight(record.State) {
			pipe.ZAdd(ctx, inflightKey, goredis.Z{
				Score:  float64(record.UpdatedAt.UnixMilli()),
				Member: record.TransferID,
			})
		} else {
			pipe.ZRem(ctx, inflightKey, record.TransferID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save saga %s: %w", record.TransferID, err)
	}
	return nil
}

// Stale returns up to limit in-flight transferIds last saved before before,
// oldest first. Index entries older than the record TTL point at expired
// records and are dropped.
func (r *SagaStateRepository) Stale(ctx context.Context, before time.Time, limit int64) ([]string, error) {
	expired := time.Now().Add(-r.ttl).UnixMilli()
	if err := r.client.ZRemRangeByScore(ctx, inflightKey, "-inf", strconv.FormatInt(expired, 10)).Err(); err != nil {
		return nil, fmt.Errorf("prune in-flight sagas: %w", err)
	}

	ids, err := r.client.ZRangeByScore(ctx, inflightKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(before.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list in-flight sagas: %w", err)
	}
	return ids, nil
}

func inFlight(state saga.State) bool {
	return state == saga.StateMovingFunds || state == saga.StateRecording
}
