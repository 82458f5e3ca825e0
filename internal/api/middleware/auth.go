package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// Context keys set by Auth.
const (
	ContextKeySessionID   = "session_id"
	ContextKeyPrincipalID = "principal_id"
	ContextKeyIdentity    = "identity"
)

// Authenticator turns a bearer token into the session's published identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*ports.AuthResult, error)
}

// Auth requires a valid session token and injects the session id, principal
// id and resolved identity into the context. The identity is nil for a
// principal that has no role yet.
func Auth(svc Authenticator) echo.MiddlewareFunc {
	return authenticate(svc, false)
}

// OptionalAuth behaves like Auth when an Authorization header is present and
// lets anonymous requests through otherwise.
func OptionalAuth(svc Authenticator) echo.MiddlewareFunc {
	return authenticate(svc, true)
}

func authenticate(svc Authenticator, optional bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				if optional {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			res, err := svc.Authenticate(c.Request().Context(), parts[1])
			if err != nil {
				if errors.Is(err, domain.ErrSessionExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
				}
				return err
			}

			c.Set(ContextKeySessionID, res.Session.ID)
			c.Set(ContextKeyPrincipalID, res.Session.PrincipalID)
			c.Set(ContextKeyIdentity, res.Identity)

			return next(c)
		}
	}
}

// SessionID returns the session id injected by Auth, or "".
func SessionID(c echo.Context) string {
	id, _ := c.Get(ContextKeySessionID).(string)
	return id
}

// PrincipalID returns the principal id injected by Auth, or "".
func PrincipalID(c echo.Context) string {
	id, _ := c.Get(ContextKeyPrincipalID).(string)
	return id
}

// Identity returns the identity injected by Auth, or nil.
func Identity(c echo.Context) *domain.ResolvedIdentity {
	id, _ := c.Get(ContextKeyIdentity).(*domain.ResolvedIdentity)
	return id
}
