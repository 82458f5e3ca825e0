package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/identity-core/internal/api/middleware"
	"github.com/carebridge/identity-core/internal/core/domain"
)

// ctxSession returns the session id injected by the Auth middleware and
// fails fast when it is missing, which means the route was wired without Auth.
func ctxSession(c echo.Context) (string, error) {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return sessionID, nil
}

// ctxIdentity returns the caller's resolved identity. A signed-in principal
// without a role has no identity and cannot use role features.
func ctxIdentity(c echo.Context) (*domain.ResolvedIdentity, error) {
	if _, err := ctxSession(c); err != nil {
		return nil, err
	}
	id := middleware.Identity(c)
	if id == nil {
		return nil, domain.ErrAccountIncomplete
	}
	return id, nil
}
