package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/pkg/metrics"
)

// Lookup stages reported in domain.ProfileLookupError.
const (
	StageRoleAssignment = "role_assignment"
	StageProfile        = "profile"
	StageTimeout        = "timeout"
)

// IdentityResolver turns a principal into its resolved identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, p *domain.Principal) (*domain.ResolvedIdentity, error)
}

// ProfileResolver resolves identities from the profile store.
type ProfileResolver struct {
	store ports.ProfileReader
	log   zerolog.Logger
}

func NewProfileResolver(store ports.ProfileReader, log zerolog.Logger) *ProfileResolver {
	return &ProfileResolver{store: store, log: log}
}

// Resolve returns nil, nil for a nil principal and for a principal without a
// role assignment. Any store failure aborts with *domain.ProfileLookupError;
// no partially filled identity is ever returned.
func (r *ProfileResolver) Resolve(ctx context.Context, p *domain.Principal) (*domain.ResolvedIdentity, error) {
	if p == nil {
		metrics.ResolutionsTotal.WithLabelValues("anonymous").Inc()
		return nil, nil
	}

	start := time.Now()
	id, err := r.resolve(ctx, p)

	role := "none"
	if id != nil {
		role = string(id.Role)
	}
	metrics.ResolutionDuration.WithLabelValues(role).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		r.log.Warn().Err(err).Str("principal_id", p.ID).Msg("identity resolution failed")
	case id == nil:
		metrics.ResolutionsTotal.WithLabelValues("no_role").Inc()
		r.log.Info().Str("principal_id", p.ID).Msg("principal has no role assignment")
	default:
		metrics.ResolutionsTotal.WithLabelValues("resolved").Inc()
		r.log.Debug().Str("principal_id", p.ID).Str("role", role).Bool("approved", id.AccountApproved).Msg("identity resolved")
	}
	return id, err
}

func (r *ProfileResolver) resolve(ctx context.Context, p *domain.Principal) (*domain.ResolvedIdentity, error) {
	a, err := r.store.GetRoleAssignment(ctx, p.ID)
	if err != nil {
		return nil, lookupErr(p.ID, StageRoleAssignment, err)
	}
	if a == nil {
		return nil, nil
	}

	id := &domain.ResolvedIdentity{
		PrincipalID:   p.ID,
		Email:         p.Email,
		Role:          a.Role,
		EmailVerified: p.EmailVerified,
	}

	switch a.Role {
	case domain.RoleDoctor:
		dp, err := r.store.GetDoctorProfile(ctx, p.ID)
		if err != nil {
			return nil, lookupErr(p.ID, StageProfile, err)
		}
		if dp == nil {
			return nil, lookupErr(p.ID, StageProfile, domain.ErrProfileNotFound)
		}
		id.Profile = dp
		id.AccountApproved = dp.IsApproved
	case domain.RolePatient:
		pp, err := r.store.GetPatientProfile(ctx, p.ID)
		if err != nil {
			return nil, lookupErr(p.ID, StageProfile, err)
		}
		if pp == nil {
			return nil, lookupErr(p.ID, StageProfile, domain.ErrProfileNotFound)
		}
		id.Profile = pp
		id.AccountApproved = true
	case domain.RoleAdmin:
		id.AccountApproved = true
	default:
		return nil, lookupErr(p.ID, StageRoleAssignment, domain.ErrUnknownRole)
	}
	return id, nil
}

func lookupErr(principalID, stage string, err error) error {
	return &domain.ProfileLookupError{PrincipalID: principalID, Stage: stage, Err: err}
}
