package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/middleware"
	"github.com/eaglebank/wallet/shared/models"
)

type RecipientResolver interface {
	ResolveRecipient(context.Context, cqrs.ResolveRecipientQuery) (models.RecipientView, error)
}

// InternalHandler serves the directory lookups transfer-service makes.
type InternalHandler struct {
	resolver RecipientResolver
}

func NewInternalHandler(resolver RecipientResolver) *InternalHandler {
	return &InternalHandler{resolver: resolver}
}

func (h *InternalHandler) ResolveRecipient(c *gin.Context) {
	view, err := h.resolver.ResolveRecipient(c.Request.Context(), cqrs.ResolveRecipientQuery{Email: c.Query("email")})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
