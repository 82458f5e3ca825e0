package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/policy"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error    string   `json:"error"`
	Details  []string `json:"details,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Redirect string   `json:"redirect,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Attaches the deny reason and a redirect hint to authorization denials.
//   - Logs unexpected errors internally without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, auth header problems).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Details: ve.Problems}
	}

	if reason, ok := domain.DeniedReason(err); ok {
		code := http.StatusForbidden
		if reason == domain.ReasonNotAuthenticated {
			code = http.StatusUnauthorized
		}
		return code, errorResponse{
			Error:    "access denied",
			Reason:   string(reason),
			Redirect: policy.RedirectFor(policy.Verdict{Reason: reason}),
		}
	}

	// Wrapper errors first: their causes would match the cases below.
	switch {
	case errors.Is(err, domain.ErrPartialRegistration):
		logUnavailable(log, c, err)
		return http.StatusServiceUnavailable, errorResponse{Error: "registration incomplete; retry with the same credentials"}
	case errors.Is(err, domain.ErrProfileLookup):
		logUnavailable(log, c, err)
		return http.StatusServiceUnavailable, errorResponse{Error: "profile lookup failed"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "invalid credentials"}
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, errorResponse{Error: "session expired", Redirect: policy.SignInRoute}
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidToken.Error()}
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, errorResponse{Error: "email already registered"}
	case errors.Is(err, domain.ErrRoleAlreadyAssigned):
		return http.StatusConflict, errorResponse{Error: "role already assigned"}
	case errors.Is(err, domain.ErrAccountIncomplete):
		return http.StatusConflict, errorResponse{Error: "account setup is incomplete; register again with the same credentials"}
	case errors.Is(err, domain.ErrPrincipalMismatch):
		return http.StatusForbidden, errorResponse{Error: "profile does not belong to caller"}
	case errors.Is(err, domain.ErrPrincipalNotFound):
		return http.StatusNotFound, errorResponse{Error: "principal not found"}
	case errors.Is(err, domain.ErrProfileNotFound):
		return http.StatusNotFound, errorResponse{Error: "profile not found"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}

func logUnavailable(log zerolog.Logger, c echo.Context, err error) {
	log.Warn().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("dependency failure")
}
