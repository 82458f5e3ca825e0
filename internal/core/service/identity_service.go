package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// errNoManager means a session event was not routed to the registry; the
// registry was not started against the credential store.
var errNoManager = errors.New("session registry is not subscribed to the credential store")

type identityService struct {
	creds    ports.CredentialStore
	registry *SessionRegistry
	register *RegistrationOrchestrator
	gateway  *ProfileGateway
	restores singleflight.Group
	retries  singleflight.Group
	log      zerolog.Logger
}

// NewIdentityService returns the IdentityService over a started registry.
func NewIdentityService(
	creds ports.CredentialStore,
	registry *SessionRegistry,
	register *RegistrationOrchestrator,
	gateway *ProfileGateway,
	log zerolog.Logger,
) ports.IdentityService {
	return &identityService{
		creds:    creds,
		registry: registry,
		register: register,
		gateway:  gateway,
		log:      log,
	}
}

// Login opens a session. The sign-in event resolves the identity
// synchronously; a session whose identity cannot be resolved is closed again.
func (s *identityService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	sess, err := s.creds.SignIn(ctx, normalizeEmail(email), password)
	if err != nil {
		return nil, err
	}

	m := s.registry.Lookup(sess.ID)
	if m == nil {
		s.abandon(ctx, sess.ID)
		return nil, fmt.Errorf("login: %w", errNoManager)
	}

	st := m.Snapshot()
	switch {
	case st.Err != nil:
		s.abandon(ctx, sess.ID)
		return nil, st.Err
	case st.Identity == nil:
		s.abandon(ctx, sess.ID)
		return nil, domain.ErrAccountIncomplete
	}
	return &ports.AuthResult{Session: sess, Identity: st.Identity}, nil
}

// Register runs the registration steps and signs the new principal in.
func (s *identityService) Register(ctx context.Context, reg ports.Registration) (*ports.AuthResult, error) {
	if _, err := s.register.Register(ctx, reg); err != nil {
		return nil, err
	}
	acct := reg.Account()
	return s.Login(ctx, acct.Email, acct.Password)
}

func (s *identityService) Logout(ctx context.Context, sessionID string) error {
	return s.creds.SignOut(ctx, sessionID)
}

// RefreshSession renews the session token; the refresh event re-resolves the
// identity.
func (s *identityService) RefreshSession(ctx context.Context, sessionID string) (*ports.AuthResult, error) {
	sess, err := s.creds.RefreshSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m := s.registry.Lookup(sess.ID)
	if m == nil {
		return nil, fmt.Errorf("refresh session: %w", errNoManager)
	}
	st := m.Snapshot()
	if st.Err != nil {
		return nil, st.Err
	}
	return &ports.AuthResult{Session: sess, Identity: st.Identity}, nil
}

// Authenticate resolves a bearer token. Sessions that are not resident, for
// example after a restart, are restored once even under concurrent requests.
func (s *identityService) Authenticate(ctx context.Context, token string) (*ports.AuthResult, error) {
	sess, err := s.creds.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}

	m := s.registry.Lookup(sess.ID)
	if m == nil {
		// waiters share one restore, so it must not die with the first caller
		restoreCtx := context.WithoutCancel(ctx)
		_, err, _ := s.restores.Do(sess.ID, func() (any, error) {
			return s.creds.RestoreSession(restoreCtx, token)
		})
		if err != nil {
			return nil, err
		}
		if m = s.registry.Lookup(sess.ID); m == nil {
			return nil, fmt.Errorf("authenticate: %w", errNoManager)
		}
	}

	st := s.settle(ctx, m)
	if m.Ended() {
		return nil, domain.ErrSessionExpired
	}
	if st.Err != nil {
		return nil, st.Err
	}
	return &ports.AuthResult{Session: sess, Identity: st.Identity}, nil
}

// settle returns the published state of m. A failed last resolution is
// retried once, shared between concurrent requests, so a session recovers as
// soon as the profile store does.
func (s *identityService) settle(ctx context.Context, m *SessionManager) State {
	st := m.Snapshot()
	if st.Err == nil || m.Ended() {
		return st
	}
	_, _, _ = s.retries.Do(m.SessionID(), func() (any, error) {
		_, err := m.Refresh(ctx, nil)
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", m.SessionID()).Msg("identity resolution still failing")
		}
		return nil, err
	})
	return m.Snapshot()
}

func (s *identityService) CurrentIdentity(sessionID string) *domain.ResolvedIdentity {
	m := s.registry.Lookup(sessionID)
	if m == nil {
		return nil
	}
	return m.Current()
}

func (s *identityService) UpdateProfile(ctx context.Context, sessionID string, patch ports.ProfilePatch) (*domain.ResolvedIdentity, error) {
	m := s.registry.Lookup(sessionID)
	if m == nil {
		return nil, domain.ErrSessionExpired
	}
	return s.gateway.UpdateProfile(ctx, m, m.Current(), patch)
}

func (s *identityService) abandon(ctx context.Context, sessionID string) {
	if err := s.creds.SignOut(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to close unusable session")
	}
}
