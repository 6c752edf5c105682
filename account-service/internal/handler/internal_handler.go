package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/wallet/account-service/internal/ledger"
	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/middleware"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

// LedgerCommander is the trusted service-to-service surface.
type LedgerCommander interface {
	Credit(context.Context, cqrs.AdjustBalanceCommand) (*models.Account, error)
	Debit(context.Context, cqrs.AdjustBalanceCommand) (*models.Account, error)
	Transfer(context.Context, cqrs.TransferFundsCommand) (ledger.TransferResult, error)
}

type BalanceQuerier interface {
	GetBalance(context.Context, cqrs.GetBalanceQuery) (models.BalanceView, error)
	GetAccountOwner(ctx context.Context, accountID string) (models.AccountOwner, error)
}

// InternalHandler serves /internal routes. They are guarded by the shared
// internal token and skip ownership checks.
type InternalHandler struct {
	commands LedgerCommander
	queries  BalanceQuerier
}

func NewInternalHandler(commands LedgerCommander, queries BalanceQuerier) *InternalHandler {
	return &InternalHandler{commands: commands, queries: queries}
}

type TransferRequest struct {
	TransferID    string       `json:"transferId" validate:"required"`
	FromAccountID string       `json:"fromAccountId" validate:"required"`
	ToAccountID   string       `json:"toAccountId" validate:"required"`
	Amount        money.Amount `json:"amount" validate:"positive_amount"`
}

type TransferResponse struct {
	TransferID     string             `json:"transferId"`
	AlreadyApplied bool               `json:"alreadyApplied"`
	From           models.BalanceView `json:"from"`
	To             models.BalanceView `json:"to"`
}

func (h *InternalHandler) GetBalance(c *gin.Context) {
	view, err := h.queries.GetBalance(c.Request.Context(), cqrs.GetBalanceQuery{AccountID: c.Param("accountId")})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *InternalHandler) GetOwner(c *gin.Context) {
	owner, err := h.queries.GetAccountOwner(c.Request.Context(), c.Param("accountId"))
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

func (h *InternalHandler) Credit(c *gin.Context) {
	h.adjust(c, h.commands.Credit)
}

func (h *InternalHandler) Debit(c *gin.Context) {
	h.adjust(c, h.commands.Debit)
}

func (h *InternalHandler) adjust(c *gin.Context, op func(context.Context, cqrs.AdjustBalanceCommand) (*models.Account, error)) {
	req, ok := bindAmount(c)
	if !ok {
		return
	}
	account, err := op(c.Request.Context(), cqrs.AdjustBalanceCommand{
		AccountID: c.Param("accountId"),
		Amount:    req.Amount,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceOf(account))
}

func (h *InternalHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	res, err := h.commands.Transfer(c.Request.Context(), cqrs.TransferFundsCommand{
		TransferID:    req.TransferID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyApplied {
		status = http.StatusOK
	}
	c.JSON(status, TransferResponse{
		TransferID:     req.TransferID,
		AlreadyApplied: res.AlreadyApplied,
		From:           balanceOf(res.From),
		To:             balanceOf(res.To),
	})
}

func balanceOf(a *models.Account) models.BalanceView {
	if a == nil {
		return models.BalanceView{}
	}
	return models.BalanceView{AccountID: a.ID, Balance: a.Balance, Version: a.Version}
}
