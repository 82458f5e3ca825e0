package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/pkg/validation"
)

const passwordRule = "required,min=8,max=72"

type accountService struct {
	creds    ports.CredentialStore
	validate *validation.Validator
	log      zerolog.Logger
}

// NewAccountService returns the verification and password flows.
func NewAccountService(creds ports.CredentialStore, v *validation.Validator, log zerolog.Logger) ports.AccountService {
	return &accountService{creds: creds, validate: v, log: log}
}

func (s *accountService) SendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.validate.Var("email", email, "required,email"); err != nil {
		return err
	}
	return s.creds.SendVerification(ctx, email)
}

// Verify consumes a verification token. The credential store announces the
// change so every live session of the principal re-resolves.
func (s *accountService) Verify(ctx context.Context, token string) error {
	if err := s.validate.Var("token", token, "required"); err != nil {
		return err
	}
	p, err := s.creds.Verify(ctx, token)
	if err != nil {
		return err
	}
	s.log.Info().Str("principal_id", p.ID).Msg("email verified")
	return nil
}

// RequestPasswordReset succeeds for unknown emails too.
func (s *accountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.validate.Var("email", email, "required,email"); err != nil {
		return err
	}
	return s.creds.RequestPasswordReset(ctx, email)
}

func (s *accountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.validate.Var("token", token, "required"); err != nil {
		return err
	}
	if err := s.validate.Var("password", newPassword, passwordRule); err != nil {
		return err
	}
	return s.creds.ResetPassword(ctx, token, newPassword)
}

func (s *accountService) UpdatePassword(ctx context.Context, sessionID, newPassword string) error {
	if err := s.validate.Var("password", newPassword, passwordRule); err != nil {
		return err
	}
	if err := s.creds.UpdatePassword(ctx, sessionID, newPassword); err != nil {
		return err
	}
	s.log.Info().Str("session_id", sessionID).Msg("password updated")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
