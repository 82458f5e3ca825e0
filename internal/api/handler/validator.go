package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/identity-core/internal/pkg/validation"
)

// NewValidator returns the shared validator, ready to be assigned to
// echo.Echo.Validator.
func NewValidator() *validation.Validator {
	return validation.New()
}

// bind decodes the request into req and runs c.Validate on it when a
// validator is installed. Validation failures surface as
// *domain.ValidationError and render as 422.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}
