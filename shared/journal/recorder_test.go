package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/events"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

type fakeAppender struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
	err      error
}

func newFakeAppender() *fakeAppender {
	return &fakeAppender{calls: map[string]int{}, failures: map[string]int{}}
}

func (f *fakeAppender) Append(ctx context.Context, record models.MovementRecord, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.failures[key] > 0 {
		f.failures[key]--
		return errs.Upstream("journal unavailable", errors.New("connection refused"))
	}
	return f.err
}

type fakeQueue struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (q *fakeQueue) Enqueue(ctx context.Context, entry Entry, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.entries = append(q.entries, entry)
	return nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, AttemptTimeout: time.Second}
}

func transferEntries() []Entry {
	amount := money.MustParse("40.00")
	return []Entry{
		{Key: "trf-1:out", Record: models.MovementRecord{ID: "m1", AccountID: "acc-a", Kind: models.MovementTransferOut, Amount: amount, CounterpartyAccountID: "acc-b"}},
		{Key: "trf-1:in", Record: models.MovementRecord{ID: "m2", AccountID: "acc-b", Kind: models.MovementTransferIn, Amount: amount, CounterpartyAccountID: "acc-a"}},
	}
}

func TestRecordAllAppended(t *testing.T) {
	appender := newFakeAppender()
	queue := &fakeQueue{}
	r := NewRecorder(appender, queue, fastPolicy(), nil)

	report, err := r.Record(context.Background(), transferEntries()...)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"trf-1:out", "trf-1:in"}, report.Appended)
	assert.Empty(t, queue.entries)
}

func TestRecordRetriesTransientFailures(t *testing.T) {
	appender := newFakeAppender()
	appender.failures["trf-1:in"] = 2
	queue := &fakeQueue{}
	r := NewRecorder(appender, queue, fastPolicy(), nil)

	report, err := r.Record(context.Background(), transferEntries()...)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 3, appender.calls["trf-1:in"])
	assert.Equal(t, 1, appender.calls["trf-1:out"])
}

func TestRecordQueuesWhatStillFails(t *testing.T) {
	appender := newFakeAppender()
	appender.failures["trf-1:out"] = 10
	appender.failures["trf-1:in"] = 10
	queue := &fakeQueue{}
	r := NewRecorder(appender, queue, fastPolicy(), nil)

	report, err := r.Record(context.Background(), transferEntries()...)
	assert.True(t, errors.Is(err, errs.ErrPartial))
	assert.ElementsMatch(t, []string{"trf-1:out", "trf-1:in"}, report.Queued)
	assert.Equal(t, 3, appender.calls["trf-1:out"])
	require.Len(t, queue.entries, 2)
}

func TestRecordReportsLostEntries(t *testing.T) {
	appender := newFakeAppender()
	appender.failures["trf-1:out"] = 10
	queue := &fakeQueue{err: errors.New("redis down")}
	r := NewRecorder(appender, queue, fastPolicy(), nil)

	report, err := r.Record(context.Background(), transferEntries()...)
	assert.True(t, errors.Is(err, errs.ErrPartial))
	assert.Equal(t, []string{"trf-1:out"}, report.Lost)
	assert.Equal(t, []string{"trf-1:in"}, report.Appended)
}

func TestRecordDoesNotRetryValidationErrors(t *testing.T) {
	appender := newFakeAppender()
	appender.err = errs.Validation("bad record")
	queue := &fakeQueue{}
	r := NewRecorder(appender, queue, fastPolicy(), nil)

	_, err := r.Record(context.Background(), transferEntries()[0])
	assert.True(t, errors.Is(err, errs.ErrPartial))
	assert.Equal(t, 1, appender.calls["trf-1:out"])
}

func TestStreamQueuePublishesPendingAppend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := NewStreamQueue(client)
	entry := transferEntries()[0]
	require.NoError(t, q.Enqueue(context.Background(), entry, errors.New("timeout")))

	msgs, err := client.XRange(context.Background(), events.JournalPendingStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Values["event"], `"idempotencyKey":"trf-1:out"`)
	assert.Contains(t, msgs[0].Values["event"], `"lastError":"timeout"`)
}

func TestStreamQueueNeverTrimsPendingEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	// Other streams on the same client are trimmed; the retry queue is not.
	trimmed := events.NewPublisher(client, 1)
	q := NewStreamQueue(client)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, transferEntries()[0], nil))
		require.NoError(t, trimmed.Publish(ctx, events.AccountEventsStream, events.AccountCreated, events.AccountCreatedEvent{AccountID: "acc-a"}))
	}

	assert.Equal(t, int64(5), client.XLen(ctx, events.JournalPendingStream).Val())
}
