package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/events"
	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/utils"
)

// MovementWriter is the append-only journal table.
type MovementWriter interface {
	Append(ctx context.Context, key string, record models.MovementRecord) (*models.MovementRecord, bool, error)
}

type MovementCache interface {
	Cache(ctx context.Context, record *models.MovementRecord)
}

// JournalCommandService appends movement records. Every append carries an
// idempotency key and repeating one returns the record already stored.
type JournalCommandService struct {
	writer MovementWriter
	cache  MovementCache
	logger *zap.Logger
	now    func() time.Time
}

func NewJournalCommandService(writer MovementWriter, cache MovementCache, logger *zap.Logger) *JournalCommandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalCommandService{
		writer: writer,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AppendMovement stores cmd.Record under cmd.IdempotencyKey. created is false
// when the key was seen before.
func (s *JournalCommandService) AppendMovement(ctx context.Context, cmd cqrs.AppendMovementCommand) (*models.MovementRecord, bool, error) {
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return nil, false, errs.Validation("Idempotency-Key is required")
	}
	record := cmd.Record
	if err := record.Validate(); err != nil {
		return nil, false, err
	}
	if record.ID == "" {
		record.ID = utils.GenerateID(utils.MovementPrefix)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = s.now()
	}

	stored, created, err := s.writer.Append(ctx, cmd.IdempotencyKey, record)
	if err != nil {
		return nil, false, err
	}

	log := logging.FromContext(ctx, s.logger)
	if created {
		s.cache.Cache(ctx, stored)
		log.Info("movement journaled",
			zap.String("movement_id", stored.ID),
			zap.String("account_id", stored.AccountID),
			zap.String("kind", string(stored.Kind)))
	} else {
		log.Debug("duplicate journal append", zap.String("idempotency_key", cmd.IdempotencyKey))
	}
	return stored, created, nil
}

// HandlePendingAppend drains the journal retry queue. Entries that can never
// be stored are logged and acknowledged; anything else is returned so the
// entry stays pending and is claimed again.
func (s *JournalCommandService) HandlePendingAppend(ctx context.Context, event events.Event) error {
	if event.Type != events.JournalAppendRequested {
		return nil
	}
	var payload events.JournalAppendRequestedEvent
	if err := events.DecodeData(event, &payload); err != nil {
		s.logger.Error("dropping undecodable journal entry", zap.Error(err))
		return nil
	}

	_, _, err := s.AppendMovement(ctx, cqrs.AppendMovementCommand{
		IdempotencyKey: payload.IdempotencyKey,
		Record:         payload.Record,
	})
	if errors.Is(err, errs.ErrValidation) {
		s.logger.Error("dropping invalid journal entry",
			zap.String("idempotency_key", payload.IdempotencyKey),
			zap.String("account_id", payload.Record.AccountID),
			zap.Error(err))
		return nil
	}
	return err
}
