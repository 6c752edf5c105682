package journal

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/eaglebank/wallet/shared/events"
	"github.com/eaglebank/wallet/shared/httpclient"
	"github.com/eaglebank/wallet/shared/models"
)

// IdempotencyKeyHeader carries the append key to the journal service.
const IdempotencyKeyHeader = "Idempotency-Key"

// HTTPAppender calls the transaction service's append endpoint.
type HTTPAppender struct {
	client *httpclient.Client
}

func NewHTTPAppender(client *httpclient.Client) *HTTPAppender {
	return &HTTPAppender{client: client}
}

func (a *HTTPAppender) Append(ctx context.Context, record models.MovementRecord, idempotencyKey string) error {
	_, err := a.client.Do(ctx, http.MethodPost, "/internal/movements",
		map[string]string{IdempotencyKeyHeader: idempotencyKey}, record, nil)
	return err
}

// StreamQueue is the durable retry queue, a Redis stream consumed by the
// transaction service. The stream is never trimmed: an entry leaves it only
// when the consumer acknowledges it.
type StreamQueue struct {
	publisher *events.Publisher
}

func NewStreamQueue(client *redis.Client) *StreamQueue {
	return &StreamQueue{publisher: events.NewPublisher(client, 0)}
}

func (q *StreamQueue) Enqueue(ctx context.Context, entry Entry, cause error) error {
	payload := events.JournalAppendRequestedEvent{
		IdempotencyKey: entry.Key,
		Record:         entry.Record,
	}
	if cause != nil {
		payload.LastError = cause.Error()
	}
	return q.publisher.Publish(ctx, events.JournalPendingStream, events.JournalAppendRequested, payload)
}
