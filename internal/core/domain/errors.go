package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrSessionExpired      = errors.New("session expired")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrEmailTaken          = errors.New("email already registered")
	ErrPrincipalNotFound   = errors.New("principal not found")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrRoleAlreadyAssigned = errors.New("role already assigned")
	ErrAccountIncomplete   = errors.New("account setup is incomplete")
	ErrPrincipalMismatch   = errors.New("profile does not belong to caller")
	ErrUnknownRole         = errors.New("unknown role")

	ErrProfileLookup       = errors.New("profile lookup failed")
	ErrPartialRegistration = errors.New("registration incomplete")
	ErrValidation          = errors.New("validation failed")
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// ProfileLookupError reports a failed role or profile fetch during resolution.
// No identity is published when it occurs.
type ProfileLookupError struct {
	PrincipalID string
	Stage       string
	Err         error
}

func (e *ProfileLookupError) Error() string {
	return fmt.Sprintf("profile lookup for %s failed at %s: %v", e.PrincipalID, e.Stage, e.Err)
}

func (e *ProfileLookupError) Is(target error) bool { return target == ErrProfileLookup }
func (e *ProfileLookupError) Unwrap() error        { return e.Err }

// RegistrationStep names the step that failed after the principal existed.
type RegistrationStep string

const (
	StepRoleAssignment RegistrationStep = "role_assignment"
	StepProfile        RegistrationStep = "profile"
)

// PartialRegistrationError means the principal was created but a later
// registration step failed. The account cannot resolve until a repeat
// registration with the same credentials completes the missing steps.
type PartialRegistrationError struct {
	PrincipalID string
	Step        RegistrationStep
	Err         error
}

func (e *PartialRegistrationError) Error() string {
	return fmt.Sprintf("registration of %s stopped at %s: %v", e.PrincipalID, e.Step, e.Err)
}

func (e *PartialRegistrationError) Is(target error) bool { return target == ErrPartialRegistration }
func (e *PartialRegistrationError) Unwrap() error        { return e.Err }

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Problems []string
}

// NewValidationError returns a ValidationError with the given messages.
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return ErrValidation.Error()
	}
	return strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DenyReason explains a denied authorization verdict.
type DenyReason string

const (
	ReasonNotAuthenticated DenyReason = "not_authenticated"
	ReasonWrongRole        DenyReason = "wrong_role"
	ReasonEmailNotVerified DenyReason = "email_not_verified"
	ReasonNotApproved      DenyReason = "not_approved"
)

// AuthorizationDeniedError is the error form of a denied verdict.
type AuthorizationDeniedError struct {
	Reason DenyReason
}

func (e *AuthorizationDeniedError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

func (e *AuthorizationDeniedError) Is(target error) bool { return target == ErrAuthorizationDenied }

// DeniedReason extracts the deny reason from err, if it is a denial.
func DeniedReason(err error) (DenyReason, bool) {
	var de *AuthorizationDeniedError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}
