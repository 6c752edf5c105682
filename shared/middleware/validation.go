package middleware

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/eaglebank/wallet/shared/money"
)

var validate = newValidator()

// newValidator teaches the validator to see money.Amount as its decimal
// string, so `validate:"positive_amount"` can check it without floats.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if a, ok := field.Interface().(money.Amount); ok {
			return a.String()
		}
		return nil
	}, money.Amount{})
	_ = v.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
		a, err := money.Parse(fl.Field().String())
		return err == nil && a.IsPositive()
	})
	return v
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type BadRequestErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []ValidationError `json:"details"`
}

func ValidateRequest(obj any) []ValidationError {
	var validationErrors []ValidationError

	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Field: "", Message: "Invalid request", Type: "invalid"}}
	}

	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Field(),
			Message: getErrorMsg(fe),
			Type:    fe.Tag(),
		})
	}

	return validationErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + err.Param()
	case "gte":
		return "Value must be greater than or equal to " + err.Param()
	case "positive_amount":
		return "Amount must be greater than zero"
	default:
		return "Invalid value"
	}
}

func RespondWithValidationError(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Code:    "invalid",
		Message: "Invalid request data",
		Details: validationErrors,
	})
}
