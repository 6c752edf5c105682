package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/middleware"
	"github.com/eaglebank/wallet/shared/models"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(context.Context, cqrs.CreateUserCommand) (*models.User, error)
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(context.Context, cqrs.GetUserQuery) (*models.UserView, error)
}

// UserHandler routes requests to the command or query service as appropriate.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=320"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

// CreateUser registers the caller in the recipient directory under the
// token's user id.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.RespondWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		UserID: userID,
		Name:   req.Name,
		Email:  req.Email,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	requestingUserID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{
		UserID:           c.Param("userId"),
		RequestingUserID: requestingUserID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
