package query

import (
	"context"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

type MovementReader interface {
	GetByID(ctx context.Context, accountID, movementID string) (*models.MovementRecord, error)
	History(ctx context.Context, accountID string) ([]models.MovementRecord, error)
}

// AccountOwners resolves who owns an account.
type AccountOwners interface {
	GetOwner(ctx context.Context, accountID string) (models.AccountOwner, error)
}

// MovementQueryService serves journal reads. Ownership is always checked
// before results are returned.
type MovementQueryService struct {
	movements MovementReader
	owners    AccountOwners
}

func NewMovementQueryService(movements MovementReader, owners AccountOwners) *MovementQueryService {
	return &MovementQueryService{movements: movements, owners: owners}
}

func (s *MovementQueryService) GetMovement(ctx context.Context, q cqrs.GetMovementQuery) (*models.MovementRecord, error) {
	if err := s.authorize(ctx, q.AccountID, q.UserID); err != nil {
		return nil, err
	}
	return s.movements.GetByID(ctx, q.AccountID, q.MovementID)
}

// ListMovements returns the account's journal, most recent first.
func (s *MovementQueryService) ListMovements(ctx context.Context, q cqrs.ListMovementsQuery) ([]models.MovementRecord, error) {
	if err := s.authorize(ctx, q.AccountID, q.UserID); err != nil {
		return nil, err
	}
	return s.movements.History(ctx, q.AccountID)
}

func (s *MovementQueryService) authorize(ctx context.Context, accountID, userID string) error {
	owner, err := s.owners.GetOwner(ctx, accountID)
	if err != nil {
		return err
	}
	if owner.UserID != userID {
		return errs.Forbidden("You can only view transactions for your own accounts")
	}
	return nil
}
