package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/policy"
	"github.com/carebridge/identity-core/internal/pkg/metrics"
)

// RequireRole admits callers whose identity holds role. An unapproved doctor
// passes a doctor gate; use RequireTrustedRole for features that need
// approval.
func RequireRole(ev policy.Evaluator, role domain.Role) echo.MiddlewareFunc {
	return Require(ev, policy.Requirement{Role: role})
}

// RequireTrustedRole admits callers whose identity holds role and whose
// account is approved.
func RequireTrustedRole(ev policy.Evaluator, role domain.Role) echo.MiddlewareFunc {
	return Require(ev, policy.Requirement{Role: role, Trusted: true})
}

// Require evaluates req against the identity injected by Auth and fails with
// the verdict's *domain.AuthorizationDeniedError when access is denied.
func Require(ev policy.Evaluator, req policy.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v := ev.Evaluate(Identity(c), req)
			RecordVerdict(req.Role, v)
			if !v.Allowed {
				return v.Err()
			}
			return next(c)
		}
	}
}

// RecordVerdict counts v under the required role.
func RecordVerdict(role domain.Role, v policy.Verdict) {
	reason := "allowed"
	if !v.Allowed {
		reason = string(v.Reason)
	}
	metrics.VerdictsTotal.WithLabelValues(string(role), reason).Inc()
}
