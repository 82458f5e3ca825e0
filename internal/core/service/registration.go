package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/pkg/metrics"
	"github.com/carebridge/identity-core/internal/pkg/validation"
)

// Registrar is the part of the credential store used by registration.
type Registrar interface {
	SignUp(ctx context.Context, email, password string) (*domain.Principal, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Principal, error)
}

// RegistrationOrchestrator creates a principal, its role assignment and its
// initial profile. The steps are not atomic: a failure after the principal
// exists is reported as *domain.PartialRegistrationError and a repeat
// registration with the same credentials completes the missing steps.
type RegistrationOrchestrator struct {
	creds    Registrar
	profiles ports.ProfileStore
	validate *validation.Validator
	now      func() time.Time
	log      zerolog.Logger
}

func NewRegistrationOrchestrator(creds Registrar, profiles ports.ProfileStore, v *validation.Validator, log zerolog.Logger) *RegistrationOrchestrator {
	return &RegistrationOrchestrator{
		creds:    creds,
		profiles: profiles,
		validate: v,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// Register validates reg and runs the registration steps.
func (o *RegistrationOrchestrator) Register(ctx context.Context, reg ports.Registration) (*domain.Principal, error) {
	if reg == nil {
		return nil, domain.NewValidationError("registration is required")
	}
	role := string(reg.Role())
	if err := o.validate.Validate(reg); err != nil {
		metrics.RegistrationsTotal.WithLabelValues(role, "rejected").Inc()
		return nil, err
	}

	acct := reg.Account()
	email := normalizeEmail(acct.Email)

	p, err := o.creds.SignUp(ctx, email, acct.Password)
	if errors.Is(err, domain.ErrEmailTaken) {
		return o.resume(ctx, email, reg)
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := o.complete(ctx, p, reg, nil); err != nil {
		return nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues(role, "created").Inc()
	o.log.Info().Str("principal_id", p.ID).Str("role", role).Msg("principal registered")
	return p, nil
}

// resume completes a partial registration when the credentials match the
// existing principal and some step is still missing.
func (o *RegistrationOrchestrator) resume(ctx context.Context, email string, reg ports.Registration) (*domain.Principal, error) {
	p, err := o.creds.Authenticate(ctx, email, reg.Account().Password)
	if err != nil {
		return nil, domain.ErrEmailTaken
	}

	a, err := o.profiles.GetRoleAssignment(ctx, p.ID)
	if err != nil {
		return nil, o.partial(reg, p.ID, domain.StepRoleAssignment, err)
	}
	if a != nil {
		if a.Role != reg.Role() {
			return nil, domain.ErrEmailTaken
		}
		missing, err := o.profileMissing(ctx, p.ID, a.Role)
		if err != nil {
			return nil, o.partial(reg, p.ID, domain.StepProfile, err)
		}
		if !missing {
			return nil, domain.ErrEmailTaken
		}
	}

	if err := o.complete(ctx, p, reg, a); err != nil {
		return nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues(string(reg.Role()), "repaired").Inc()
	o.log.Info().Str("principal_id", p.ID).Str("role", string(reg.Role())).Msg("partial registration completed")
	return p, nil
}

func (o *RegistrationOrchestrator) complete(ctx context.Context, p *domain.Principal, reg ports.Registration, existing *domain.RoleAssignment) error {
	now := o.now()
	if existing == nil {
		a := domain.RoleAssignment{PrincipalID: p.ID, Role: reg.Role(), CreatedAt: now}
		if err := o.profiles.InsertRoleAssignment(ctx, a); err != nil {
			return o.partial(reg, p.ID, domain.StepRoleAssignment, err)
		}
	}

	profile := newProfile(p.ID, reg, now)
	if profile == nil {
		return nil
	}
	if err := o.profiles.InsertProfile(ctx, profile); err != nil {
		return o.partial(reg, p.ID, domain.StepProfile, err)
	}
	return nil
}

func (o *RegistrationOrchestrator) profileMissing(ctx context.Context, principalID string, role domain.Role) (bool, error) {
	switch role {
	case domain.RoleDoctor:
		dp, err := o.profiles.GetDoctorProfile(ctx, principalID)
		return dp == nil, err
	case domain.RolePatient:
		pp, err := o.profiles.GetPatientProfile(ctx, principalID)
		return pp == nil, err
	}
	return false, nil
}

func (o *RegistrationOrchestrator) partial(reg ports.Registration, principalID string, step domain.RegistrationStep, err error) error {
	metrics.RegistrationsTotal.WithLabelValues(string(reg.Role()), "partial").Inc()
	o.log.Error().Err(err).
		Str("principal_id", principalID).
		Str("step", string(step)).
		Msg("registration left incomplete")
	return &domain.PartialRegistrationError{PrincipalID: principalID, Step: step, Err: err}
}

// newProfile builds the initial profile for reg, or nil for roles without one.
func newProfile(principalID string, reg ports.Registration, now time.Time) domain.Profile {
	switch r := reg.(type) {
	case ports.DoctorRegistration:
		return &domain.DoctorProfile{
			PrincipalID:     principalID,
			FirstName:       strings.TrimSpace(r.FirstName),
			LastName:        strings.TrimSpace(r.LastName),
			Phone:           strings.TrimSpace(r.Phone),
			Nationality:     strings.TrimSpace(r.Nationality),
			Specialties:     append([]string(nil), r.Specialties...),
			Bio:             r.Bio,
			Website:         r.Website,
			SocialMedia:     r.SocialMedia,
			ProfileImageURL: r.ProfileImageURL,
			IsApproved:      false,
			ApprovalStatus:  domain.ApprovalPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	case ports.PatientRegistration:
		return &domain.PatientProfile{
			PrincipalID: principalID,
			Alias:       strings.TrimSpace(r.Alias),
			Bio:         r.Bio,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return nil
}
