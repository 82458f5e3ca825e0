// Package policy decides whether a resolved identity may access something
// that requires a given role. Evaluation is pure: it performs no I/O and
// returns the same verdict for the same inputs.
package policy

import "github.com/carebridge/identity-core/internal/core/domain"

// Verdict is the outcome of an authorization check. Reason is empty when
// Allowed is true.
type Verdict struct {
	Allowed bool              `json:"allowed"`
	Reason  domain.DenyReason `json:"reason,omitempty"`
}

// Err returns the verdict as an *domain.AuthorizationDeniedError, or nil when
// access is allowed.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	return &domain.AuthorizationDeniedError{Reason: v.Reason}
}

func allow() Verdict                   { return Verdict{Allowed: true} }
func deny(r domain.DenyReason) Verdict { return Verdict{Reason: r} }

// Requirement describes what a caller needs. Trusted requirements gate
// features that an unapproved doctor may not use; plain route access does not.
type Requirement struct {
	Role    domain.Role
	Trusted bool
}

// Evaluator holds the configurable parts of the policy.
type Evaluator struct {
	// RequireVerifiedEmail denies principals whose email is unverified.
	RequireVerifiedEmail bool
}

// Authorize checks route-level access to role.
func (e Evaluator) Authorize(id *domain.ResolvedIdentity, role domain.Role) Verdict {
	return e.Evaluate(id, Requirement{Role: role})
}

// Evaluate applies the rules in order; the first match wins.
func (e Evaluator) Evaluate(id *domain.ResolvedIdentity, req Requirement) Verdict {
	switch {
	case id == nil:
		return deny(domain.ReasonNotAuthenticated)
	case id.Role != req.Role:
		return deny(domain.ReasonWrongRole)
	case e.RequireVerifiedEmail && !id.EmailVerified:
		return deny(domain.ReasonEmailNotVerified)
	case req.Trusted && !id.AccountApproved:
		return deny(domain.ReasonNotApproved)
	}
	return allow()
}

// Authorize evaluates route-level access with the default policy, which does
// not require a verified email.
func Authorize(id *domain.ResolvedIdentity, role domain.Role) Verdict {
	return Evaluator{}.Authorize(id, role)
}

// Redirect targets for denied verdicts.
const (
	SignInRoute      = "/login"
	DefaultRoute     = "/"
	VerifyEmailRoute = "/verify-email"
)

// RedirectFor returns where a client should send a caller after v. It is
// empty for allowed verdicts and for NotApproved, which is advisory.
func RedirectFor(v Verdict) string {
	if v.Allowed {
		return ""
	}
	switch v.Reason {
	case domain.ReasonNotAuthenticated:
		return SignInRoute
	case domain.ReasonWrongRole:
		return DefaultRoute
	case domain.ReasonEmailNotVerified:
		return VerifyEmailRoute
	}
	return ""
}
