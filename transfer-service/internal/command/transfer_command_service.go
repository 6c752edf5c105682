package command

import (
	"context"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

type AccountOwners interface {
	GetOwner(ctx context.Context, accountID string) (models.AccountOwner, error)
}

type TransferSaga interface {
	Execute(ctx context.Context, intent models.TransferIntent) (models.TransferOutcome, error)
}

// TransferCommandService checks that the caller owns the paying account
// before handing the intent to the saga.
type TransferCommandService struct {
	owners AccountOwners
	saga   TransferSaga
}

func NewTransferCommandService(owners AccountOwners, saga TransferSaga) *TransferCommandService {
	return &TransferCommandService{owners: owners, saga: saga}
}

func (s *TransferCommandService) ExecuteTransfer(ctx context.Context, cmd cqrs.ExecuteTransferCommand) (models.TransferOutcome, error) {
	// An intent without a sender is rejected by the saga itself.
	if cmd.Intent.FromAccountID != "" {
		owner, err := s.owners.GetOwner(ctx, cmd.Intent.FromAccountID)
		if err != nil {
			return models.TransferOutcome{}, err
		}
		if owner.UserID != cmd.RequestingUserID {
			return models.TransferOutcome{}, errs.Forbidden("You can only transfer from your own accounts")
		}
	}
	return s.saga.Execute(ctx, cmd.Intent)
}
