package command

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/wallet/account-service/internal/ledger"
	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/events"
	"github.com/eaglebank/wallet/shared/journal"
	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
	"github.com/eaglebank/wallet/shared/utils"
)

const defaultCurrency = "GBP"

// AccountStore creates accounts and reads their committed state.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// MovementRecorder journals committed balance movements.
type MovementRecorder interface {
	Record(ctx context.Context, entries ...journal.Entry) (journal.Report, error)
}

type ViewInvalidator interface {
	Invalidate(ctx context.Context, accountID string)
}

// MovementResult is the answer to a deposit or withdrawal. Journaled is false
// when the balance changed but the journal entry was deferred to the retry
// queue.
type MovementResult struct {
	Movement  models.MovementRecord `json:"movement"`
	Balance   money.Amount          `json:"balance"`
	Journaled bool                  `json:"journaled"`
}

// AccountCommandService changes account state through the ledger and keeps
// the read model and event stream in step.
type AccountCommandService struct {
	store     AccountStore
	ledger    *ledger.Ledger
	views     ViewInvalidator
	publisher EventPublisher
	recorder  MovementRecorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewAccountCommandService(
	store AccountStore,
	l *ledger.Ledger,
	views ViewInvalidator,
	publisher EventPublisher,
	recorder MovementRecorder,
	logger *zap.Logger,
) *AccountCommandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountCommandService{
		store:     store,
		ledger:    l,
		views:     views,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OpenAccount creates a zero-balance wallet for the user.
func (s *AccountCommandService) OpenAccount(ctx context.Context, cmd cqrs.OpenAccountCommand) (*models.Account, error) {
	now := s.now()
	account := &models.Account{
		ID:        utils.GenerateID(utils.AccountPrefix),
		UserID:    cmd.UserID,
		Name:      cmd.Name,
		Balance:   money.Zero,
		Currency:  defaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.AccountEventsStream, events.AccountCreated, events.AccountCreatedEvent{
		AccountID: account.ID,
		UserID:    account.UserID,
		Name:      account.Name,
	}); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to publish account.created",
			zap.String("account_id", account.ID), zap.Error(err))
	}
	return account, nil
}

func (s *AccountCommandService) Deposit(ctx context.Context, cmd cqrs.DepositCommand) (*MovementResult, error) {
	if err := s.authorize(ctx, cmd.AccountID, cmd.RequestingUserID); err != nil {
		return nil, err
	}
	account, err := s.ledger.Credit(ctx, cmd.AccountID, cmd.Amount)
	if err != nil {
		return nil, err
	}
	s.balanceChanged(ctx, account, cmd.Amount, "credit")
	return s.journal(ctx, account, models.MovementDeposit, cmd.Amount), nil
}

func (s *AccountCommandService) Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (*MovementResult, error) {
	if err := s.authorize(ctx, cmd.AccountID, cmd.RequestingUserID); err != nil {
		return nil, err
	}
	account, err := s.ledger.Debit(ctx, cmd.AccountID, cmd.Amount)
	if err != nil {
		return nil, err
	}
	s.balanceChanged(ctx, account, cmd.Amount, "debit")
	return s.journal(ctx, account, models.MovementWithdrawal, cmd.Amount), nil
}

// Credit and Debit are the trusted internal primitives. The caller owns
// journaling.
func (s *AccountCommandService) Credit(ctx context.Context, cmd cqrs.AdjustBalanceCommand) (*models.Account, error) {
	account, err := s.ledger.Credit(ctx, cmd.AccountID, cmd.Amount)
	if err != nil {
		return nil, err
	}
	s.balanceChanged(ctx, account, cmd.Amount, "credit")
	return account, nil
}

func (s *AccountCommandService) Debit(ctx context.Context, cmd cqrs.AdjustBalanceCommand) (*models.Account, error) {
	account, err := s.ledger.Debit(ctx, cmd.AccountID, cmd.Amount)
	if err != nil {
		return nil, err
	}
	s.balanceChanged(ctx, account, cmd.Amount, "debit")
	return account, nil
}

func (s *AccountCommandService) Transfer(ctx context.Context, cmd cqrs.TransferFundsCommand) (ledger.TransferResult, error) {
	res, err := s.ledger.AtomicTransfer(ctx, ledger.TransferRequest{
		TransferID:    cmd.TransferID,
		FromAccountID: cmd.FromAccountID,
		ToAccountID:   cmd.ToAccountID,
		Amount:        cmd.Amount,
	})
	if err != nil {
		return ledger.TransferResult{}, err
	}
	if !res.AlreadyApplied {
		s.balanceChanged(ctx, res.From, cmd.Amount, "debit")
		s.balanceChanged(ctx, res.To, cmd.Amount, "credit")
	}
	return res, nil
}

func (s *AccountCommandService) authorize(ctx context.Context, accountID, userID string) error {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.UserID != userID {
		return errs.Forbidden("You can only access your own accounts")
	}
	return nil
}

// balanceChanged drops the cached view and announces the new balance.
// Neither step can undo the committed change.
func (s *AccountCommandService) balanceChanged(ctx context.Context, account *models.Account, change money.Amount, direction string) {
	s.views.Invalidate(ctx, account.ID)

	if err := s.publisher.Publish(ctx, events.AccountEventsStream, events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountID:  account.ID,
		NewBalance: account.Balance,
		Change:     change,
		Direction:  direction,
		Version:    account.Version,
	}); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to publish balance.updated",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *AccountCommandService) journal(ctx context.Context, account *models.Account, kind models.MovementKind, amount money.Amount) *MovementResult {
	movementID := utils.GenerateID(utils.MovementPrefix)
	record := models.MovementRecord{
		ID:        movementID,
		AccountID: account.ID,
		Kind:      kind,
		Amount:    amount,
		Reference: movementID,
		Timestamp: s.now(),
	}

	result := &MovementResult{Movement: record, Balance: account.Balance, Journaled: true}
	report, err := s.recorder.Record(ctx, journal.Entry{Key: utils.MovementKey(movementID), Record: record})
	if err != nil {
		result.Journaled = false
		if !errors.Is(err, errs.ErrPartial) {
			err = errs.Partial("journal entry deferred", err)
		}
		logging.FromContext(ctx, s.logger).Error("movement committed but not journaled",
			zap.String("account_id", account.ID),
			zap.String("movement_id", movementID),
			zap.Strings("queued", report.Queued),
			zap.Strings("lost", report.Lost),
			zap.Error(err))
	}
	return result
}
