package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/wallet/account-service/internal/command"
	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/middleware"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	OpenAccount(context.Context, cqrs.OpenAccountCommand) (*models.Account, error)
	Deposit(context.Context, cqrs.DepositCommand) (*command.MovementResult, error)
	Withdraw(context.Context, cqrs.WithdrawCommand) (*command.MovementResult, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.AccountView, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

type OpenAccountRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// AmountRequest is the body of deposit, withdraw, credit and debit.
type AmountRequest struct {
	Amount money.Amount `json:"amount" validate:"positive_amount"`
}

type ListAccountsResponse struct {
	Accounts []models.AccountView `json:"accounts"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) OpenAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	account, err := h.commands.OpenAccount(c.Request.Context(), cqrs.OpenAccountCommand{
		UserID: userID,
		Name:   req.Name,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	views, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{UserID: userID})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	if views == nil {
		views = []models.AccountView{}
	}
	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: views})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{
		AccountID:        c.Param("accountId"),
		RequestingUserID: userID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	req, ok := bindAmount(c)
	if !ok {
		return
	}
	result, err := h.commands.Deposit(c.Request.Context(), cqrs.DepositCommand{
		AccountID:        c.Param("accountId"),
		RequestingUserID: userID,
		Amount:           req.Amount,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(movementStatus(result), result)
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	req, ok := bindAmount(c)
	if !ok {
		return
	}
	result, err := h.commands.Withdraw(c.Request.Context(), cqrs.WithdrawCommand{
		AccountID:        c.Param("accountId"),
		RequestingUserID: userID,
		Amount:           req.Amount,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(movementStatus(result), result)
}

func bindAmount(c *gin.Context) (AmountRequest, bool) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return req, false
	}
	return req, true
}

// movementStatus is 202 when the balance changed but journaling was deferred.
func movementStatus(result *command.MovementResult) int {
	if result.Journaled {
		return http.StatusCreated
	}
	return http.StatusAccepted
}
