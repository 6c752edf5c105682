package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
)

type fakeReader struct {
	byEmail map[string]*models.User
	err     error
}

func (f *fakeReader) GetByID(_ context.Context, id string) (*models.UserView, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return &models.UserView{ID: u.ID, Name: u.Name, Email: u.Email, AccountID: u.AccountID}, nil
		}
	}
	return nil, errs.NotFound("User not found")
}

func (f *fakeReader) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.NotFound("User not found")
	}
	return u, nil
}

func newQueryService() (*UserQueryService, *fakeReader) {
	reader := &fakeReader{byEmail: map[string]*models.User{
		"bob@example.com":  {ID: "usr-2", Name: "Bob", Email: "bob@example.com", AccountID: "acc-2"},
		"cleo@example.com": {ID: "usr-3", Name: "Cleo", Email: "cleo@example.com"},
	}}
	return NewUserQueryService(reader), reader
}

func TestGetUserOwnProfileOnly(t *testing.T) {
	svc, _ := newQueryService()

	view, err := svc.GetUser(context.Background(), cqrs.GetUserQuery{UserID: "usr-2", RequestingUserID: "usr-2"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", view.Name)

	_, err = svc.GetUser(context.Background(), cqrs.GetUserQuery{UserID: "usr-2", RequestingUserID: "usr-1"})
	assert.True(t, errors.Is(err, errs.ErrForbidden))
}

func TestResolveRecipient(t *testing.T) {
	svc, _ := newQueryService()

	tests := []struct {
		name    string
		email   string
		want    models.RecipientView
		wantErr error
	}{
		{"normalized lookup", " BOB@example.com", models.RecipientView{UserID: "usr-2", AccountID: "acc-2", Name: "Bob"}, nil},
		{"unknown email", "nobody@example.com", models.RecipientView{}, errs.ErrNotFound},
		{"user without account", "cleo@example.com", models.RecipientView{}, errs.ErrNotFound},
		{"blank email", "  ", models.RecipientView{}, errs.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ResolveRecipient(context.Background(), cqrs.ResolveRecipientQuery{Email: tt.email})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRecipientNotFoundMessage(t *testing.T) {
	svc, _ := newQueryService()
	_, err := svc.ResolveRecipient(context.Background(), cqrs.ResolveRecipientQuery{Email: "cleo@example.com"})
	appErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, "Recipient user not found.", appErr.Message)
}

func TestResolveRecipientStorageFailurePassesThrough(t *testing.T) {
	svc, reader := newQueryService()
	reader.err = errs.Upstream("user storage unavailable", errors.New("timeout"))

	_, err := svc.ResolveRecipient(context.Background(), cqrs.ResolveRecipientQuery{Email: "bob@example.com"})
	assert.True(t, errors.Is(err, errs.ErrUpstream))
}
