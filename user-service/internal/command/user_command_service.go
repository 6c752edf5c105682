package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/events"
	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/models"
)

// UserWriter is the PostgreSQL write store.
type UserWriter interface {
	Create(ctx context.Context, user *models.User) error
	SetAccountID(ctx context.Context, userID, accountID string) (bool, error)
}

type UserViewCache interface {
	CacheUserView(ctx context.Context, user *models.User)
	InvalidateUserView(ctx context.Context, userID string)
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// UserCommandService writes user state to PostgreSQL and keeps the Redis
// read model up to date.
type UserCommandService struct {
	writer    UserWriter
	views     UserViewCache
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewUserCommandService(writer UserWriter, views UserViewCache, publisher EventPublisher, logger *zap.Logger) *UserCommandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserCommandService{
		writer:    writer,
		views:     views,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser adds the authenticated user to the recipient directory.
func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.User, error) {
	if cmd.UserID == "" {
		return nil, errs.Validation("user id is required")
	}
	now := s.now()
	user := &models.User{
		ID:        cmd.UserID,
		Name:      cmd.Name,
		Email:     models.NormalizeEmail(cmd.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writer.Create(ctx, user); err != nil {
		return nil, err
	}
	s.views.CacheUserView(ctx, user)

	if err := s.publisher.Publish(ctx, events.UserEventsStream, events.UserCreated, events.UserCreatedEvent{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to publish user.created",
			zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// LinkAccount makes accountID the user's recipient account unless one is
// already linked.
func (s *UserCommandService) LinkAccount(ctx context.Context, cmd cqrs.LinkAccountCommand) (bool, error) {
	linked, err := s.writer.SetAccountID(ctx, cmd.UserID, cmd.AccountID)
	if err != nil {
		return false, err
	}
	if linked {
		s.views.InvalidateUserView(ctx, cmd.UserID)
	}
	return linked, nil
}

// HandleAccountEvent is the Redis stream subscriber handler. Only storage
// failures are returned, leaving the entry pending for redelivery.
func (s *UserCommandService) HandleAccountEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.AccountCreated {
		return nil
	}
	log := logging.FromContext(ctx, s.logger)

	var data events.AccountCreatedEvent
	if err := events.DecodeData(event, &data); err != nil {
		log.Error("dropping undecodable account.created event", zap.Error(err))
		return nil
	}

	linked, err := s.LinkAccount(ctx, cqrs.LinkAccountCommand{UserID: data.UserID, AccountID: data.AccountID})
	if err != nil {
		return err
	}
	if !linked {
		log.Info("account not linked; user unknown or already has a recipient account",
			zap.String("user_id", data.UserID), zap.String("account_id", data.AccountID))
		return nil
	}
	log.Info("recipient account linked",
		zap.String("user_id", data.UserID), zap.String("account_id", data.AccountID))
	return nil
}
