// Package saga runs peer-to-peer transfers across the directory, ledger and
// journal services. A transfer moves through
//
//	START -> RESOLVING -> MOVING_FUNDS -> RECORDING -> COMPLETED | PARTIAL
//
// and may be REJECTED before funds move. Once the ledger has applied the
// transfer it is never compensated; a journal failure ends in PARTIAL and the
// entries are finished from the durable retry queue. A ledger call whose
// result is unknown leaves the record in MOVING_FUNDS, where a replay or the
// recovery sweep settles it.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/journal"
	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/utils"
)

const (
	msgCompleted         = "Transfer completed successfully!"
	msgPartial           = "Transfer completed. Transaction history will update shortly."
	msgRecipientNotFound = "Recipient user not found."
	msgSelfTransfer      = "Cannot transfer money to yourself."
	msgKeyReused         = "transferId was already used for a different transfer"
	msgUnavailable       = "A dependency is temporarily unavailable, retry with the same transferId"
)

// Resolver is the recipient directory.
type Resolver interface {
	ResolveRecipient(ctx context.Context, email string) (models.RecipientView, error)
}

// Ledger applies a transfer atomically. alreadyApplied is true when the
// ledger had already recorded transferId with the same parameters.
type Ledger interface {
	AtomicTransfer(ctx context.Context, cmd cqrs.TransferFundsCommand) (alreadyApplied bool, err error)
}

type Recorder interface {
	Record(ctx context.Context, entries ...journal.Entry) (journal.Report, error)
}

// StateStore holds saga records. Get returns nil and no error on a miss.
// Stale lists transferIds left in MOVING_FUNDS or RECORDING since before.
type StateStore interface {
	Get(ctx context.Context, transferID string) (*Record, error)
	Save(ctx context.Context, record *Record) error
	Stale(ctx context.Context, before time.Time, limit int64) ([]string, error)
}

// Locker serialises concurrent runs of one transferId.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(context.Context), err error)
}

type Dependencies struct {
	Resolver Resolver
	Ledger   Ledger
	Recorder Recorder
	Store    StateStore
	Locker   Locker
	// LedgerRetry bounds how often AtomicTransfer is re-issued after a
	// retryable failure. The zero value uses journal.DefaultRetryPolicy.
	LedgerRetry journal.RetryPolicy
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
}

type Coordinator struct {
	resolver    Resolver
	ledger      Ledger
	ledgerRetry journal.RetryPolicy
	recorder    Recorder
	store       StateStore
	locker      Locker
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time
}

func NewCoordinator(deps Dependencies, logger *zap.Logger) *Coordinator {
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/eaglebank/wallet/transfer-service/saga")
	}
	if deps.LedgerRetry == (journal.RetryPolicy{}) {
		deps.LedgerRetry = journal.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		resolver:    deps.Resolver,
		ledger:      deps.Ledger,
		ledgerRetry: deps.LedgerRetry,
		recorder:    deps.Recorder,
		store:       deps.Store,
		locker:      deps.Locker,
		tracer:      deps.Tracer,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LockKey is the distributed lock guarding transferID.
func LockKey(transferID string) string {
	return "lock:transfer:" + transferID
}

// Execute runs or replays the transfer described by intent. Rejections are
// reported in the outcome. The error is non-nil when the transfer could not be
// attempted at all, such as when another request holds its lock, or when the
// ledger's answer is unknown and the transfer is still pending.
func (c *Coordinator) Execute(ctx context.Context, intent models.TransferIntent) (models.TransferOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.execute", trace.WithAttributes(
		attribute.String("transfer.id", intent.TransferID),
		attribute.String("transfer.from_account_id", intent.FromAccountID),
	))
	defer span.End()

	if err := intent.Validate(); err != nil {
		return rejected(intent.TransferID, errs.ReasonInvalid, messageOf(err, "invalid transfer")), nil
	}

	unlock, err := c.locker.Lock(ctx, LockKey(intent.TransferID))
	if err != nil {
		endWithError(span, err)
		return models.TransferOutcome{}, err
	}
	defer unlock(context.WithoutCancel(ctx))

	outcome, err := c.replay(ctx, intent)
	if err != nil {
		endWithError(span, err)
		return models.TransferOutcome{}, err
	}
	span.SetAttributes(attribute.String("transfer.status", string(outcome.Status)))
	return outcome, nil
}

func (c *Coordinator) replay(ctx context.Context, intent models.TransferIntent) (models.TransferOutcome, error) {
	record := c.load(ctx, intent.TransferID)
	if record == nil {
		return c.run(ctx, newRecord(intent))
	}
	if !record.Matches(intent) {
		return rejected(intent.TransferID, errs.ReasonInvalid, msgKeyReused), nil
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("transfer.replayed_state", string(record.State)))

	switch record.State {
	case StateCompleted, StateRejected:
		if record.Outcome != nil {
			return *record.Outcome, nil
		}
	case StateMovingFunds:
		if record.ToAccountID != "" {
			return c.settle(ctx, record)
		}
	case StateRecording, StatePartial:
		record.State = StateRecording
		return c.record(ctx, record)
	}
	return c.run(ctx, newRecord(intent))
}

func (c *Coordinator) run(ctx context.Context, record *Record) (models.TransferOutcome, error) {
	if err := c.advance(ctx, record, StateResolving); err != nil {
		return models.TransferOutcome{}, err
	}

	recipient, err := c.resolve(ctx, record)
	if err != nil {
		return c.reject(ctx, record, err)
	}
	record.ToAccountID = recipient.AccountID
	if record.ToAccountID == record.FromAccountID {
		return c.reject(ctx, record, errs.Validation(msgSelfTransfer))
	}
	if err := c.advance(ctx, record, StateMovingFunds); err != nil {
		return models.TransferOutcome{}, err
	}
	return c.settle(ctx, record)
}

// settle applies a MOVING_FUNDS record to the ledger and journals it. Only a
// definite refusal from the ledger rejects; any other failure leaves the
// record in MOVING_FUNDS because the ledger may have committed.
func (c *Coordinator) settle(ctx context.Context, record *Record) (models.TransferOutcome, error) {
	if err := c.moveFunds(ctx, record); err != nil {
		if refused(err) {
			return c.reject(ctx, record, err)
		}
		logging.FromContext(ctx, c.logger).Warn("ledger outcome unknown, transfer left pending",
			zap.String("transfer_id", record.TransferID),
			zap.Error(err))
		c.save(context.WithoutCancel(ctx), record)
		return models.TransferOutcome{}, errs.TransferPending(err)
	}
	record.MovedAt = c.now()
	if err := c.advance(ctx, record, StateRecording); err != nil {
		return models.TransferOutcome{}, err
	}
	return c.record(ctx, record)
}

func (c *Coordinator) resolve(ctx context.Context, record *Record) (models.RecipientView, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.resolve")
	defer span.End()

	recipient, err := c.resolver.ResolveRecipient(ctx, record.ToAccountEmail)
	if err != nil {
		endWithError(span, err)
		if errors.Is(err, errs.ErrNotFound) {
			return models.RecipientView{}, errs.NotFound(msgRecipientNotFound)
		}
		return models.RecipientView{}, err
	}
	if recipient.AccountID == "" {
		return models.RecipientView{}, errs.NotFound(msgRecipientNotFound)
	}
	span.SetAttributes(attribute.String("transfer.to_account_id", recipient.AccountID))
	return recipient, nil
}

func (c *Coordinator) moveFunds(ctx context.Context, record *Record) error {
	ctx, span := c.tracer.Start(ctx, "transfer.move_funds")
	defer span.End()

	cmd := cqrs.TransferFundsCommand{
		TransferID:    record.TransferID,
		FromAccountID: record.FromAccountID,
		ToAccountID:   record.ToAccountID,
		Amount:        record.Amount,
	}
	// The ledger deduplicates on TransferID, so a retry after a lost reply
	// reports alreadyApplied instead of moving funds again.
	var alreadyApplied bool
	attempts := 0
	err := c.ledgerRetry.Do(ctx, func(ctx context.Context) error {
		attempts++
		var err error
		alreadyApplied, err = c.ledger.AtomicTransfer(ctx, cmd)
		return err
	})
	span.SetAttributes(attribute.Int("transfer.ledger_attempts", attempts))
	if err != nil {
		endWithError(span, err)
		return err
	}
	span.SetAttributes(attribute.Bool("transfer.already_applied", alreadyApplied))
	if alreadyApplied {
		logging.FromContext(ctx, c.logger).Info("ledger had already applied transfer, resuming journal",
			zap.String("transfer_id", record.TransferID))
	}
	return nil
}

// record journals both legs. It never touches the ledger.
func (c *Coordinator) record(ctx context.Context, record *Record) (models.TransferOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "transfer.record")
	defer span.End()

	movedAt := record.MovedAt
	if movedAt.IsZero() {
		movedAt = c.now()
	}
	report, err := c.recorder.Record(ctx, journalEntries(record, movedAt)...)
	log := logging.FromContext(ctx, c.logger)

	if err == nil {
		outcome := models.TransferOutcome{TransferID: record.TransferID, Status: models.TransferCompleted, Message: msgCompleted}
		record.Outcome = &outcome
		if err := c.advance(ctx, record, StateCompleted); err != nil {
			return models.TransferOutcome{}, err
		}
		return outcome, nil
	}

	endWithError(span, err)
	outcome := models.TransferOutcome{
		TransferID: record.TransferID,
		Status:     models.TransferPartial,
		Reason:     errs.ReasonPartial,
		Message:    msgPartial,
	}
	log.Error("transfer applied but journal is incomplete",
		zap.String("transfer_id", record.TransferID),
		zap.Strings("queued", report.Queued),
		zap.Strings("lost", report.Lost),
		zap.Error(err))

	// Lost entries are only recoverable by a replay, so the record stays in
	// RECORDING for the next attempt to pick up.
	if len(report.Lost) == 0 {
		record.Outcome = &outcome
		if err := c.advance(ctx, record, StatePartial); err != nil {
			return models.TransferOutcome{}, err
		}
		return outcome, nil
	}
	c.save(ctx, record)
	return outcome, nil
}

func journalEntries(record *Record, movedAt time.Time) []journal.Entry {
	return []journal.Entry{
		{
			Key: utils.JournalKey(record.TransferID, "out"),
			Record: models.MovementRecord{
				ID:                    utils.GenerateID(utils.MovementPrefix),
				AccountID:             record.FromAccountID,
				Kind:                  models.MovementTransferOut,
				Amount:                record.Amount,
				CounterpartyAccountID: record.ToAccountID,
				Reference:             record.TransferID,
				Timestamp:             movedAt,
			},
		},
		{
			Key: utils.JournalKey(record.TransferID, "in"),
			Record: models.MovementRecord{
				ID:                    utils.GenerateID(utils.MovementPrefix),
				AccountID:             record.ToAccountID,
				Kind:                  models.MovementTransferIn,
				Amount:                record.Amount,
				CounterpartyAccountID: record.FromAccountID,
				Reference:             record.TransferID,
				Timestamp:             movedAt,
			},
		},
	}
}

// reject ends the saga before funds moved. Upstream rejections are not
// cached so a retry with the same transferId runs again.
func (c *Coordinator) reject(ctx context.Context, record *Record, cause error) (models.TransferOutcome, error) {
	reason := reasonFor(cause)
	if !record.State.CanRejectWith(reason) {
		reason = errs.ReasonUpstream
	}
	message := messageOf(cause, msgUnavailable)
	if reason == errs.ReasonUpstream {
		message = msgUnavailable
	}

	outcome := rejected(record.TransferID, reason, message)
	logging.FromContext(ctx, c.logger).Info("transfer rejected",
		zap.String("transfer_id", record.TransferID),
		zap.String("state", string(record.State)),
		zap.String("reason", reason),
		zap.Error(cause))

	if reason == errs.ReasonUpstream {
		return outcome, nil
	}
	record.Outcome = &outcome
	if err := c.advance(ctx, record, StateRejected); err != nil {
		return models.TransferOutcome{}, err
	}
	return outcome, nil
}

// advance moves record to next and persists it. An illegal transition is a
// bug; it is logged and returned without touching the stored record.
func (c *Coordinator) advance(ctx context.Context, record *Record, next State) error {
	if !record.State.CanTransitionTo(next) {
		err := fmt.Errorf("saga: illegal transition %s -> %s", record.State, next)
		logging.FromContext(ctx, c.logger).Error("refusing saga transition",
			zap.String("transfer_id", record.TransferID),
			zap.Error(err))
		return err
	}
	record.State = next
	c.save(ctx, record)
	return nil
}

// save persists record. A failed save only costs replay speed: the ledger
// still refuses to apply a transferId twice.
func (c *Coordinator) save(ctx context.Context, record *Record) {
	record.UpdatedAt = c.now()
	if err := c.store.Save(ctx, record); err != nil {
		logging.FromContext(ctx, c.logger).Warn("failed to save saga state",
			zap.String("transfer_id", record.TransferID),
			zap.String("state", string(record.State)),
			zap.Error(err))
	}
}

func (c *Coordinator) load(ctx context.Context, transferID string) *Record {
	record, err := c.store.Get(ctx, transferID)
	if err != nil {
		logging.FromContext(ctx, c.logger).Warn("failed to load saga state, running from the start",
			zap.String("transfer_id", transferID), zap.Error(err))
		return nil
	}
	return record
}

func rejected(transferID, reason, message string) models.TransferOutcome {
	return models.TransferOutcome{
		TransferID: transferID,
		Status:     models.TransferRejected,
		Reason:     reason,
		Message:    message,
	}
}

// refused reports whether the ledger definitely did not apply the transfer.
func refused(err error) bool {
	return reasonFor(err) != errs.ReasonUpstream
}

// reasonFor maps a step failure onto a rejection reason. Idempotency
// conflicts from the ledger are reported as invalid.
func reasonFor(err error) string {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return errs.ReasonInvalid
	case errs.KindNotFound:
		return errs.ReasonNotFound
	case errs.KindInsufficientFunds:
		return errs.ReasonInsufficientFunds
	default:
		return errs.ReasonUpstream
	}
}

func messageOf(err error, fallback string) string {
	if e, ok := errs.As(err); ok && e.Message != "" {
		return e.Message
	}
	return fallback
}

func endWithError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
