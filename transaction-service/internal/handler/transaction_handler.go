package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/journal"
	"github.com/eaglebank/wallet/shared/middleware"
	"github.com/eaglebank/wallet/shared/models"
)

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetMovement(context.Context, cqrs.GetMovementQuery) (*models.MovementRecord, error)
	ListMovements(context.Context, cqrs.ListMovementsQuery) ([]models.MovementRecord, error)
}

// JournalCommander defines the append operation used by JournalHandler.
type JournalCommander interface {
	AppendMovement(context.Context, cqrs.AppendMovementCommand) (*models.MovementRecord, bool, error)
}

// TransactionHandler serves an account's transaction history to its owner.
type TransactionHandler struct {
	queries TransactionQuerier
}

type ListTransactionsResponse struct {
	Transactions []models.MovementRecord `json:"transactions"`
}

func NewTransactionHandler(queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{queries: queries}
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	records, err := h.queries.ListMovements(c.Request.Context(), cqrs.ListMovementsQuery{
		AccountID: c.Param("accountId"),
		UserID:    userID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: records})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	record, err := h.queries.GetMovement(c.Request.Context(), cqrs.GetMovementQuery{
		MovementID: c.Param("transactionId"),
		AccountID:  c.Param("accountId"),
		UserID:     userID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// JournalHandler is the internal append endpoint used by account-service
// and transfer-service.
type JournalHandler struct {
	commands JournalCommander
}

func NewJournalHandler(commands JournalCommander) *JournalHandler {
	return &JournalHandler{commands: commands}
}

// AppendMovement answers 201 for a new entry and 200 when the
// Idempotency-Key was already used.
func (h *JournalHandler) AppendMovement(c *gin.Context) {
	var record models.MovementRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	stored, created, err := h.commands.AppendMovement(c.Request.Context(), cqrs.AppendMovementCommand{
		IdempotencyKey: c.GetHeader(journal.IdempotencyKeyHeader),
		Record:         record,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, stored)
}
