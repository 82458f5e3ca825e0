package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type memPrincipals struct {
	mu   sync.Mutex
	byID map[string]*domain.Account
}

func (r *memPrincipals) Create(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.byID {
		if x.Email == a.Email {
			return domain.ErrEmailTaken
		}
	}
	c := *a
	r.byID[a.ID] = &c
	return nil
}

func (r *memPrincipals) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.byID {
		if x.Email == email {
			c := *x
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memPrincipals) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	c := *x
	return &c, nil
}

func (r *memPrincipals) SetEmailVerified(_ context.Context, id string, v bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id].EmailVerified = v
	return nil
}

func (r *memPrincipals) SetPasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id].PasswordHash = hash
	return nil
}

type memSessions struct {
	mu sync.Mutex
	m  map[string]domain.Session
}

func (r *memSessions) Save(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[s.ID] = *s
	return nil
}

func (r *memSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *memSessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}

func (r *memSessions) ListByPrincipal(_ context.Context, principalID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.m {
		if s.PrincipalID == principalID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memTokens struct {
	m map[string]string
}

func (r *memTokens) Put(_ context.Context, p TokenPurpose, token, id string, _ time.Duration) error {
	r.m[string(p)+":"+token] = id
	return nil
}

func (r *memTokens) Consume(_ context.Context, p TokenPurpose, token string) (string, error) {
	k := string(p) + ":" + token
	id := r.m[k]
	delete(r.m, k)
	return id, nil
}

type captureNotifier struct {
	verify map[string]string
	reset  map[string]string
}

func (n *captureNotifier) SendVerification(_ context.Context, email, token string) error {
	n.verify[email] = token
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.reset[email] = token
	return nil
}

type fixture struct {
	store    *CredentialStore
	notifier *captureNotifier
	events   []ports.SessionEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{notifier: &captureNotifier{verify: map[string]string{}, reset: map[string]string{}}}
	f.store = NewCredentialStore(
		&memPrincipals{byID: map[string]*domain.Account{}},
		&memSessions{m: map[string]domain.Session{}},
		&memTokens{m: map[string]string{}},
		NewHasher(4),
		NewTokenIssuer("secret-secret-secret-secret-0000", "identity"),
		f.notifier,
		Options{SessionTTL: time.Hour},
		zerolog.Nop(),
	)
	sub := f.store.OnSessionChange(func(_ context.Context, ev ports.SessionEvent) { f.events = append(f.events, ev) })
	t.Cleanup(sub.Unsubscribe)
	return f
}

func (f *fixture) lastEvent(t *testing.T) ports.SessionEvent {
	t.Helper()
	if len(f.events) == 0 {
		t.Fatalf("expected an event")
	}
	return f.events[len(f.events)-1]
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCredentialStore_SignUpSignInSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.store.SignUp(ctx, " JD@Example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if p.Email != "jd@example.com" || p.EmailVerified {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := f.store.SignUp(ctx, "jd@example.com", "x"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
	if _, err := f.store.SignIn(ctx, "jd@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := f.store.SignIn(ctx, "ghost@example.com", "s3cret-pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	sess, err := f.store.SignIn(ctx, "jd@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	ev := f.lastEvent(t)
	if ev.Kind != ports.SessionSignedIn || ev.SessionID != sess.ID || ev.Principal.ID != p.ID {
		t.Fatalf("unexpected event %+v", ev)
	}

	got, err := f.store.ValidateSession(ctx, sess.Token)
	if err != nil || got.ID != sess.ID {
		t.Fatalf("validate: %+v, %v", got, err)
	}

	if err := f.store.SignOut(ctx, sess.ID); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if ev := f.lastEvent(t); ev.Kind != ports.SessionSignedOut || ev.Principal != nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	if _, err := f.store.ValidateSession(ctx, sess.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if err := f.store.SignOut(ctx, sess.ID); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestCredentialStore_RefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.store.SignUp(ctx, "jd@example.com", "s3cret-pass")
	sess, _ := f.store.SignIn(ctx, "jd@example.com", "s3cret-pass")

	renewed, err := f.store.RefreshSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if renewed.Token == sess.Token || renewed.ID != sess.ID {
		t.Fatalf("expected rotated token on the same session")
	}
	if ev := f.lastEvent(t); ev.Kind != ports.SessionRefreshed || ev.Principal == nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	if _, err := f.store.ValidateSession(ctx, sess.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected old token rejected, got %v", err)
	}
	if _, err := f.store.ValidateSession(ctx, renewed.Token); err != nil {
		t.Fatalf("expected new token accepted, got %v", err)
	}
}

func TestCredentialStore_Restore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.store.SignUp(ctx, "jd@example.com", "s3cret-pass")
	sess, _ := f.store.SignIn(ctx, "jd@example.com", "s3cret-pass")

	n := len(f.events)
	if _, err := f.store.ValidateSession(ctx, sess.Token); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(f.events) != n {
		t.Fatalf("validation must not emit events")
	}
	if _, err := f.store.RestoreSession(ctx, sess.Token); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if ev := f.lastEvent(t); ev.Kind != ports.SessionRestored || ev.SessionID != sess.ID {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestCredentialStore_Verification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.store.SignUp(ctx, "jd@example.com", "s3cret-pass")

	if err := f.store.SendVerification(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email should be silent, got %v", err)
	}
	if err := f.store.SendVerification(ctx, "jd@example.com"); err != nil {
		t.Fatalf("send: %v", err)
	}
	token := f.notifier.verify["jd@example.com"]
	if token == "" {
		t.Fatalf("expected a delivered token")
	}

	got, err := f.store.Verify(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !got.EmailVerified || got.ID != p.ID {
		t.Fatalf("unexpected principal %+v", got)
	}
	ev := f.lastEvent(t)
	if ev.Kind != ports.PrincipalUpdated || ev.SessionID != "" || !ev.Principal.EmailVerified {
		t.Fatalf("unexpected event %+v", ev)
	}
	if _, err := f.store.Verify(ctx, token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected used token rejected, got %v", err)
	}
}

func TestCredentialStore_PasswordFlows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.store.SignUp(ctx, "jd@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	if err := f.store.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email should be silent, got %v", err)
	}
	if err := f.store.RequestPasswordReset(ctx, "jd@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.store.ResetPassword(ctx, "bogus", "new-password"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if err := f.store.ResetPassword(ctx, f.notifier.reset["jd@example.com"], "new-password"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.store.Authenticate(ctx, "jd@example.com", "new-password"); err != nil {
		t.Fatalf("expected new password to work: %v", err)
	}

	sess, err := f.store.SignIn(ctx, "jd@example.com", "new-password")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := f.store.UpdatePassword(ctx, sess.ID, "newer-password"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := f.store.Authenticate(ctx, "jd@example.com", "new-password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if err := f.store.UpdatePassword(ctx, "ghost", "whatever-pass"); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestCredentialStore_PasswordChangeRevokesOtherSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.store.SignUp(ctx, "jd@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := f.store.SignUp(ctx, "other@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	current, _ := f.store.SignIn(ctx, "jd@example.com", "s3cret-pass")
	laptop, _ := f.store.SignIn(ctx, "jd@example.com", "s3cret-pass")
	other, _ := f.store.SignIn(ctx, "other@example.com", "s3cret-pass")

	if err := f.store.UpdatePassword(ctx, current.ID, "changed-pass"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := f.store.ValidateSession(ctx, current.Token); err != nil {
		t.Fatalf("expected the calling session to stay valid, got %v", err)
	}
	if _, err := f.store.ValidateSession(ctx, laptop.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected the other session to be revoked, got %v", err)
	}
	if _, err := f.store.ValidateSession(ctx, other.Token); err != nil {
		t.Fatalf("another principal's session must survive, got %v", err)
	}
	if ev := f.lastEvent(t); ev.Kind != ports.SessionSignedOut || ev.SessionID != laptop.ID {
		t.Fatalf("expected a sign-out event for the revoked session, got %+v", ev)
	}

	if err := f.store.RequestPasswordReset(ctx, "jd@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.store.ResetPassword(ctx, f.notifier.reset["jd@example.com"], "reset-pass"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.store.ValidateSession(ctx, current.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected a reset to revoke every session, got %v", err)
	}
}
