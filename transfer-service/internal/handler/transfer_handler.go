package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/middleware"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
	"github.com/eaglebank/wallet/shared/utils"
)

// TransferCommander defines the write-side operation used by TransferHandler.
type TransferCommander interface {
	ExecuteTransfer(context.Context, cqrs.ExecuteTransferCommand) (models.TransferOutcome, error)
}

type TransferHandler struct {
	commands TransferCommander
}

type TransferRequest struct {
	TransferID     string       `json:"transferId" validate:"required,max=128"`
	FromAccountID  string       `json:"fromAccountId" validate:"required"`
	ToAccountEmail string       `json:"toAccountEmail" validate:"required,email"`
	Amount         money.Amount `json:"amount" validate:"positive_amount"`
}

func NewTransferHandler(commands TransferCommander) *TransferHandler {
	return &TransferHandler{commands: commands}
}

func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	if !utils.ValidateAccountID(req.FromAccountID) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid fromAccountId")
		return
	}

	outcome, err := h.commands.ExecuteTransfer(c.Request.Context(), cqrs.ExecuteTransferCommand{
		RequestingUserID: userID,
		Intent: models.TransferIntent{
			TransferID:     req.TransferID,
			FromAccountID:  req.FromAccountID,
			ToAccountEmail: req.ToAccountEmail,
			Amount:         req.Amount,
		},
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(statusForOutcome(outcome), outcome)
}

func statusForOutcome(o models.TransferOutcome) int {
	switch o.Status {
	case models.TransferCompleted:
		return http.StatusCreated
	case models.TransferPartial:
		return http.StatusAccepted
	}
	switch o.Reason {
	case errs.ReasonInvalid:
		return http.StatusBadRequest
	case errs.ReasonNotFound:
		return http.StatusNotFound
	case errs.ReasonInsufficientFunds:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}
