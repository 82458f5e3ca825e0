package ports

import (
	"context"

	"github.com/carebridge/identity-core/internal/core/domain"
)

// SessionEventKind identifies what changed about a session.
type SessionEventKind string

const (
	SessionRestored  SessionEventKind = "restored"
	SessionSignedIn  SessionEventKind = "signed_in"
	SessionSignedOut SessionEventKind = "signed_out"
	SessionRefreshed SessionEventKind = "token_refreshed"
	// PrincipalUpdated targets every live session of Principal.ID and carries
	// no SessionID.
	PrincipalUpdated SessionEventKind = "principal_updated"
)

// SessionEvent is emitted by the credential store whenever a session changes.
// Principal is nil for SessionSignedOut.
type SessionEvent struct {
	Kind      SessionEventKind
	SessionID string
	Principal *domain.Principal
}

// SessionHandler receives session events. Handlers run synchronously on the
// goroutine that caused the event.
type SessionHandler func(ctx context.Context, ev SessionEvent)

// Subscription is a cancellable registration of a SessionHandler.
type Subscription interface {
	Unsubscribe()
}

// SessionSource is the event side of the credential store.
type SessionSource interface {
	OnSessionChange(handler SessionHandler) Subscription
}

// CredentialStore issues and validates principals and sessions and owns the
// verification and password reset tokens.
type CredentialStore interface {
	SessionSource

	SignUp(ctx context.Context, email, password string) (*domain.Principal, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	// Authenticate checks credentials without opening a session.
	Authenticate(ctx context.Context, email, password string) (*domain.Principal, error)

	// ValidateSession verifies token and that its session is still live.
	ValidateSession(ctx context.Context, token string) (*domain.Session, error)
	// RestoreSession validates token and announces the session with a
	// SessionRestored event.
	RestoreSession(ctx context.Context, token string) (*domain.Session, error)
	RefreshSession(ctx context.Context, sessionID string) (*domain.Session, error)

	SendVerification(ctx context.Context, email string) error
	Verify(ctx context.Context, token string) (*domain.Principal, error)
	RequestPasswordReset(ctx context.Context, email string) error
	// ResetPassword and UpdatePassword sign out the principal's other
	// sessions. UpdatePassword keeps the session it is called from.
	ResetPassword(ctx context.Context, token, newPassword string) error
	UpdatePassword(ctx context.Context, sessionID, newPassword string) error
}
