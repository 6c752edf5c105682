package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/wallet/shared/errs"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{
		Code:    codeForStatus(code),
		Message: message,
	})
}

// RespondWithAppError maps the error taxonomy onto HTTP. Unclassified errors
// become a 500 with a generic message.
func RespondWithAppError(c *gin.Context, err error) {
	e, ok := errs.As(err)
	if !ok {
		RespondWithError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	message := e.Message
	if e.Kind == errs.KindUpstream && message == "" {
		message = "A dependency is temporarily unavailable"
	}
	c.JSON(StatusForKind(e.Kind), ErrorResponse{
		Code:    errs.ReasonOf(e),
		Message: message,
	})
}

func StatusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindUpstream:
		return http.StatusServiceUnavailable
	case errs.KindPartial:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return errs.ReasonInvalid
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return errs.ReasonForbidden
	case http.StatusNotFound:
		return errs.ReasonNotFound
	case http.StatusUnprocessableEntity:
		return errs.ReasonInsufficientFunds
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return errs.ReasonUpstream
	default:
		return "internal"
	}
}
