package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/pkg/validation"
)

func TestAccountService_PasswordReset(t *testing.T) {
	creds := newMemCreds()
	if _, err := creds.SignUp(context.Background(), "jd@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := NewAccountService(creds, validation.New(), zerolog.Nop())

	if err := svc.RequestPasswordReset(context.Background(), " JD@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// unknown emails are not revealed
	if err := svc.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), "r-jd@example.com", "short"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.ResetPassword(context.Background(), "r-jd@example.com", "brand-new-pass"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.ResetPassword(context.Background(), "r-jd@example.com", "brand-new-pass"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected used token to be rejected, got %v", err)
	}
	if _, err := creds.Authenticate(context.Background(), "jd@example.com", "brand-new-pass"); err != nil {
		t.Fatalf("expected new password to work: %v", err)
	}
}

func TestAccountService_UpdatePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Register(ctx, patientReg("jd@example.com", "jd"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other, err := h.svc.Login(ctx, "jd@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := h.accounts.UpdatePassword(ctx, res.Session.ID, "1234567"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := h.accounts.UpdatePassword(ctx, res.Session.ID, "another-pass"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.creds.Authenticate(ctx, "jd@example.com", "another-pass"); err != nil {
		t.Fatalf("expected updated password to work: %v", err)
	}

	if h.svc.CurrentIdentity(res.Session.ID) == nil {
		t.Fatalf("expected the calling session to keep its identity")
	}
	if h.registry.Lookup(other.Session.ID) != nil {
		t.Fatalf("expected the other session to be signed out")
	}
	if _, err := h.svc.Authenticate(ctx, other.Session.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected the other token to be rejected, got %v", err)
	}
}

func TestAccountService_VerifyValidation(t *testing.T) {
	svc := NewAccountService(newMemCreds(), validation.New(), zerolog.Nop())
	if err := svc.Verify(context.Background(), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.Verify(context.Background(), "unknown"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if err := svc.SendVerification(context.Background(), "nope"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
