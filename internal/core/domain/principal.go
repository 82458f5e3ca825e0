package domain

import "time"

// Principal is an authenticated account as issued by the credential store.
type Principal struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Session is a signed-in session of a principal.
type Session struct {
	ID          string
	PrincipalID string
	Token       string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its expiry at t.
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// Account is the stored form of a principal. PasswordHash never leaves the
// credential store.
type Account struct {
	Principal
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
