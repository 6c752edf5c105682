package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redsync/redsync/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
	"github.com/eaglebank/wallet/transfer-service/internal/saga"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestSagaStateRoundTripWithTTL(t *testing.T) {
	mr, client := newRedis(t)
	repo := NewSagaStateRepository(client, 72*time.Hour)
	ctx := context.Background()

	missing, err := repo.Get(ctx, "trf-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	record := &saga.Record{
		TransferID:     "trf-1",
		State:          saga.StatePartial,
		FromAccountID:  "acc-a",
		ToAccountEmail: "bob@example.com",
		ToAccountID:    "acc-b",
		Amount:         money.MustParse("40.00"),
		Outcome:        &models.TransferOutcome{TransferID: "trf-1", Status: models.TransferPartial},
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, record))

	got, err := repo.Get(ctx, "trf-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saga.StatePartial, got.State)
	assert.Equal(t, "acc-b", got.ToAccountID)
	assert.True(t, got.Amount.Equal(record.Amount))
	assert.Equal(t, models.TransferPartial, got.Outcome.Status)

	assert.Equal(t, 72*time.Hour, mr.TTL("transfer:saga:trf-1"))
	mr.FastForward(73 * time.Hour)
	expired, err := repo.Get(ctx, "trf-1")
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestStaleListsOnlyInFlightSagas(t *testing.T) {
	_, client := newRedis(t)
	repo := NewSagaStateRepository(client, 72*time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	save := func(id string, state saga.State, updated time.Time) {
		t.Helper()
		require.NoError(t, repo.Save(ctx, &saga.Record{
			TransferID:    id,
			State:         state,
			FromAccountID: "acc-a",
			Amount:        money.MustParse("1.00"),
			UpdatedAt:     updated,
		}))
	}
	save("trf-moving", saga.StateMovingFunds, now.Add(-10*time.Minute))
	save("trf-recording", saga.StateRecording, now.Add(-5*time.Minute))
	save("trf-fresh", saga.StateMovingFunds, now)
	save("trf-done", saga.StateMovingFunds, now.Add(-20*time.Minute))
	save("trf-done", saga.StateCompleted, now.Add(-20*time.Minute))

	ids, err := repo.Stale(ctx, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"trf-moving", "trf-recording"}, ids)

	first, err := repo.Stale(ctx, now.Add(-time.Minute), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"trf-moving"}, first)
}

func TestStaleDropsIndexEntriesOfExpiredRecords(t *testing.T) {
	_, client := newRedis(t)
	repo := NewSagaStateRepository(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &saga.Record{
		TransferID: "trf-old",
		State:      saga.StateMovingFunds,
		Amount:     money.MustParse("1.00"),
		UpdatedAt:  time.Now().Add(-2 * time.Hour),
	}))

	ids, err := repo.Stale(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, client.ZCard(ctx, "transfer:saga:inflight").Val())
}

func TestSagaStateGetFailsWhenRedisIsDown(t *testing.T) {
	mr, client := newRedis(t)
	repo := NewSagaStateRepository(client, time.Hour)
	mr.Close()

	_, err := repo.Get(context.Background(), "trf-1")
	assert.Error(t, err)
}

func TestTransferLockIsExclusive(t *testing.T) {
	_, client := newRedis(t)
	locker := NewTransferLocker(client, 30*time.Second, nil)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, saga.LockKey("trf-1"))
	require.NoError(t, err)

	_, err = locker.Lock(ctx, saga.LockKey("trf-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUpstream))
	assert.Equal(t, errs.ReasonTransferInProgress, errs.ReasonOf(err))

	other, err := locker.Lock(ctx, saga.LockKey("trf-2"))
	require.NoError(t, err)
	other(ctx)

	unlock(ctx)
	again, err := locker.Lock(ctx, saga.LockKey("trf-1"))
	require.NoError(t, err)
	again(ctx)
}

func TestTransferLockReportsRedisOutageAsUnavailable(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewTransferLocker(client, 30*time.Second, nil)
	mr.Close()

	_, err := locker.Lock(context.Background(), saga.LockKey("trf-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUpstream))
	assert.Equal(t, errs.ReasonUpstream, errs.ReasonOf(err))
}

func TestIsContention(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "taken on quorum", err: &redsync.ErrTaken{Nodes: []int{0}}, want: true},
		{name: "taken on one node", err: fmt.Errorf("acquire: %w", &redsync.ErrNodeTaken{Node: 0}), want: true},
		{name: "failed", err: redsync.ErrFailed, want: true},
		{name: "redis error", err: &redsync.RedisError{Node: 0, Err: errors.New("dial tcp: connection refused")}, want: false},
		{name: "message only", err: errors.New("lock already taken"), want: false},
	}

	for _, tt := range tests {
		if got := isContention(tt.err); got != tt.want {
			t.Errorf("[%s] expected %v got %v", tt.name, tt.want, got)
		}
	}
}
