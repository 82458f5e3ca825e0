package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// PrincipalRepository persists accounts. Lookups return nil, nil when no
// account matches.
type PrincipalRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// SessionRepository persists live sessions until they expire. Get returns
// nil, nil for unknown or expired sessions.
type SessionRepository interface {
	Save(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	// ListByPrincipal returns the ids of the principal's sessions. Ids of
	// sessions that expired may still be listed.
	ListByPrincipal(ctx context.Context, principalID string) ([]string, error)
}

// TokenPurpose scopes a one-time token.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify"
	PurposeResetPassword TokenPurpose = "reset"
)

// OneTimeTokens stores single-use tokens. Consume returns "" and a nil error
// when the token is unknown, expired or already used.
type OneTimeTokens interface {
	Put(ctx context.Context, purpose TokenPurpose, token, principalID string, ttl time.Duration) error
	Consume(ctx context.Context, purpose TokenPurpose, token string) (string, error)
}

// Options configures token lifetimes.
type Options struct {
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// CredentialStore implements ports.CredentialStore over a principal
// repository, a session repository and a one-time token store.
type CredentialStore struct {
	*Hub

	principals PrincipalRepository
	sessions   SessionRepository
	tokens     OneTimeTokens
	hasher     *Hasher
	issuer     *TokenIssuer
	notifier   Notifier
	opts       Options
	log        zerolog.Logger
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore(
	principals PrincipalRepository,
	sessions SessionRepository,
	tokens OneTimeTokens,
	hasher *Hasher,
	issuer *TokenIssuer,
	notifier Notifier,
	opts Options,
	log zerolog.Logger,
) *CredentialStore {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	return &CredentialStore{
		Hub:        NewHub(),
		principals: principals,
		sessions:   sessions,
		tokens:     tokens,
		hasher:     hasher,
		issuer:     issuer,
		notifier:   notifier,
		opts:       opts,
		log:        log,
	}
}

func (s *CredentialStore) SignUp(ctx context.Context, email, password string) (*domain.Principal, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	ts := now()
	a := &domain.Account{
		Principal:    domain.Principal{ID: uuid.NewString(), Email: normalize(email)},
		PasswordHash: hash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := s.principals.Create(ctx, a); err != nil {
		return nil, err
	}
	p := a.Principal
	return &p, nil
}

func (s *CredentialStore) Authenticate(ctx context.Context, email, password string) (*domain.Principal, error) {
	a, err := s.principals.FindByEmail(ctx, normalize(email))
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if a == nil || s.hasher.Compare(a.PasswordHash, password) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	p := a.Principal
	return &p, nil
}

func (s *CredentialStore) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	p, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	ts := now()
	sess := &domain.Session{
		ID:          uuid.NewString(),
		PrincipalID: p.ID,
		IssuedAt:    ts,
		ExpiresAt:   ts.Add(s.opts.SessionTTL),
	}
	if err := s.persist(ctx, sess); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	s.Emit(ctx, ports.SessionEvent{Kind: ports.SessionSignedIn, SessionID: sess.ID, Principal: p})
	return sess, nil
}

func (s *CredentialStore) SignOut(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if sess == nil {
		return domain.ErrSessionExpired
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	s.Emit(ctx, ports.SessionEvent{Kind: ports.SessionSignedOut, SessionID: sessionID})
	return nil
}

func (s *CredentialStore) ValidateSession(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	// a refreshed session only accepts its latest token
	if sess == nil || sess.Token != token || sess.Expired(now()) {
		return nil, domain.ErrSessionExpired
	}
	return sess, nil
}

func (s *CredentialStore) RestoreSession(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := s.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	p, err := s.principal(ctx, sess.PrincipalID)
	if err != nil {
		return nil, err
	}

	s.Emit(ctx, ports.SessionEvent{Kind: ports.SessionRestored, SessionID: sess.ID, Principal: p})
	return sess, nil
}

func (s *CredentialStore) RefreshSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if sess == nil {
		return nil, domain.ErrSessionExpired
	}
	p, err := s.principal(ctx, sess.PrincipalID)
	if err != nil {
		return nil, err
	}

	ts := now()
	sess.IssuedAt = ts
	sess.ExpiresAt = ts.Add(s.opts.SessionTTL)
	if err := s.persist(ctx, sess); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	s.Emit(ctx, ports.SessionEvent{Kind: ports.SessionRefreshed, SessionID: sess.ID, Principal: p})
	return sess, nil
}

// SendVerification is silent for unknown and already verified emails.
func (s *CredentialStore) SendVerification(ctx context.Context, email string) error {
	a, err := s.principals.FindByEmail(ctx, normalize(email))
	if err != nil {
		return fmt.Errorf("send verification: %w", err)
	}
	if a == nil || a.EmailVerified {
		return nil
	}
	token, err := s.issueOneTime(ctx, PurposeVerifyEmail, a.ID, s.opts.VerificationTTL)
	if err != nil {
		return fmt.Errorf("send verification: %w", err)
	}
	return s.notifier.SendVerification(ctx, a.Email, token)
}

// Verify consumes token, marks the email verified and announces the change
// to every session of the principal.
func (s *CredentialStore) Verify(ctx context.Context, token string) (*domain.Principal, error) {
	id, err := s.tokens.Consume(ctx, PurposeVerifyEmail, token)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if id == "" {
		return nil, domain.ErrInvalidToken
	}
	if err := s.principals.SetEmailVerified(ctx, id, true); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	p, err := s.principal(ctx, id)
	if err != nil {
		return nil, err
	}

	s.Emit(ctx, ports.SessionEvent{Kind: ports.PrincipalUpdated, Principal: p})
	return p, nil
}

// RequestPasswordReset is silent for unknown emails.
func (s *CredentialStore) RequestPasswordReset(ctx context.Context, email string) error {
	a, err := s.principals.FindByEmail(ctx, normalize(email))
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	if a == nil {
		s.log.Debug().Msg("password reset requested for unknown email")
		return nil
	}
	token, err := s.issueOneTime(ctx, PurposeResetPassword, a.ID, s.opts.ResetTTL)
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	return s.notifier.SendPasswordReset(ctx, a.Email, token)
}

func (s *CredentialStore) ResetPassword(ctx context.Context, token, newPassword string) error {
	id, err := s.tokens.Consume(ctx, PurposeResetPassword, token)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if id == "" {
		return domain.ErrInvalidToken
	}
	if err := s.setPassword(ctx, id, newPassword); err != nil {
		return err
	}
	return s.revokeSessions(ctx, id, "")
}

func (s *CredentialStore) UpdatePassword(ctx context.Context, sessionID, newPassword string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if sess == nil {
		return domain.ErrSessionExpired
	}
	if _, err := s.principal(ctx, sess.PrincipalID); err != nil {
		return err
	}
	if err := s.setPassword(ctx, sess.PrincipalID, newPassword); err != nil {
		return err
	}
	return s.revokeSessions(ctx, sess.PrincipalID, sessionID)
}

// revokeSessions signs out every session of principalID except keep.
func (s *CredentialStore) revokeSessions(ctx context.Context, principalID, keep string) error {
	ids, err := s.sessions.ListByPrincipal(ctx, principalID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	n := 0
	for _, id := range ids {
		if id == keep {
			continue
		}
		switch err := s.SignOut(ctx, id); {
		case errors.Is(err, domain.ErrSessionExpired):
		case err != nil:
			return fmt.Errorf("revoke sessions: %w", err)
		default:
			n++
		}
	}
	if n > 0 {
		s.log.Info().Str("principal_id", principalID).Int("sessions", n).Msg("sessions revoked after password change")
	}
	return nil
}

func (s *CredentialStore) setPassword(ctx context.Context, id, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if err := s.principals.SetPasswordHash(ctx, id, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func (s *CredentialStore) persist(ctx context.Context, sess *domain.Session) error {
	token, err := s.issuer.Issue(sess)
	if err != nil {
		return err
	}
	sess.Token = token
	return s.sessions.Save(ctx, sess)
}

func (s *CredentialStore) principal(ctx context.Context, id string) (*domain.Principal, error) {
	a, err := s.principals.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	if a == nil {
		return nil, domain.ErrPrincipalNotFound
	}
	p := a.Principal
	return &p, nil
}

func (s *CredentialStore) issueOneTime(ctx context.Context, purpose TokenPurpose, principalID string, ttl time.Duration) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	if err := s.tokens.Put(ctx, purpose, token, principalID, ttl); err != nil {
		return "", err
	}
	return token, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
