// Package journal records completed balance movements in the transaction
// journal. Appends are retried; whatever still fails is handed to a durable
// queue under the same idempotency key so a background consumer can finish it.
package journal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/models"
)

// Appender writes one record under an idempotency key.
type Appender interface {
	Append(ctx context.Context, record models.MovementRecord, idempotencyKey string) error
}

// Queue durably stores entries for a later append.
type Queue interface {
	Enqueue(ctx context.Context, entry Entry, cause error) error
}

type Entry struct {
	Key    string
	Record models.MovementRecord
}

// Report says what happened to each entry, by idempotency key.
type Report struct {
	Appended []string
	Queued   []string
	// Lost entries could be neither appended nor queued. They are recovered
	// by replaying the originating request with the same key.
	Lost []string
}

func (r Report) Complete() bool { return len(r.Queued) == 0 && len(r.Lost) == 0 }

type Recorder struct {
	appender Appender
	queue    Queue
	policy   RetryPolicy
	logger   *zap.Logger
}

func NewRecorder(appender Appender, queue Queue, policy RetryPolicy, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{appender: appender, queue: queue, policy: policy.normalized(), logger: logger}
}

type entryResult struct {
	appendErr  error
	enqueueErr error
}

// Record appends all entries concurrently. It returns a nil error only when
// every entry is durable in the journal; otherwise it returns a
// PartialFailureError and the report of what was queued or lost.
func (r *Recorder) Record(ctx context.Context, entries ...Entry) (Report, error) {
	results := make([]entryResult, len(entries))

	var g errgroup.Group
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			results[i].appendErr = r.appendWithRetry(ctx, entry)
			if results[i].appendErr == nil {
				return nil
			}
			// The request may already be cancelled; the queue write must still happen.
			results[i].enqueueErr = r.queue.Enqueue(context.WithoutCancel(ctx), entry, results[i].appendErr)
			return nil
		})
	}
	_ = g.Wait()

	var report Report
	var failures []error
	log := logging.FromContext(ctx, r.logger)
	for i, entry := range entries {
		res := results[i]
		switch {
		case res.appendErr == nil:
			report.Appended = append(report.Appended, entry.Key)
		case res.enqueueErr == nil:
			report.Queued = append(report.Queued, entry.Key)
			failures = append(failures, res.appendErr)
			log.Warn("journal append queued for retry",
				zap.String("idempotency_key", entry.Key),
				zap.String("account_id", entry.Record.AccountID),
				zap.Error(res.appendErr))
		default:
			report.Lost = append(report.Lost, entry.Key)
			failures = append(failures, res.appendErr, res.enqueueErr)
			log.Error("journal entry could not be appended or queued",
				zap.String("idempotency_key", entry.Key),
				zap.String("account_id", entry.Record.AccountID),
				zap.NamedError("append_error", res.appendErr),
				zap.NamedError("enqueue_error", res.enqueueErr))
		}
	}

	if report.Complete() {
		return report, nil
	}
	return report, errs.Partial(
		fmt.Sprintf("%d of %d journal entries are pending", len(report.Queued)+len(report.Lost), len(entries)),
		errors.Join(failures...),
	)
}

func (r *Recorder) appendWithRetry(ctx context.Context, entry Entry) error {
	return r.policy.Do(ctx, func(ctx context.Context) error {
		return r.appender.Append(ctx, entry.Record, entry.Key)
	})
}
