package query

import (
	"context"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.UserView, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// UserQueryService reads user views from the Redis cache (with a Postgres fallback).
type UserQueryService struct {
	reader UserReader
}

func NewUserQueryService(reader UserReader) *UserQueryService {
	return &UserQueryService{reader: reader}
}

func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	if q.UserID != q.RequestingUserID {
		return nil, errs.Forbidden("You can only view your own profile")
	}
	return s.reader.GetByID(ctx, q.UserID)
}

// ResolveRecipient maps a payee email to the account transfers credit. A user
// without an account cannot receive money and is reported as not found.
func (s *UserQueryService) ResolveRecipient(ctx context.Context, q cqrs.ResolveRecipientQuery) (models.RecipientView, error) {
	email := models.NormalizeEmail(q.Email)
	if email == "" {
		return models.RecipientView{}, errs.Validation("email is required")
	}
	user, err := s.reader.GetByEmail(ctx, email)
	if errs.KindOf(err) == errs.KindNotFound || (err == nil && user.AccountID == "") {
		return models.RecipientView{}, errs.NotFound("Recipient user not found.")
	}
	if err != nil {
		return models.RecipientView{}, err
	}
	return models.RecipientView{UserID: user.ID, AccountID: user.AccountID, Name: user.Name}, nil
}
