package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/policy"
	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/pkg/validation"
)

// Refresher re-resolves a session. A nil principal means the session's last
// known principal.
type Refresher interface {
	Refresh(ctx context.Context, p *domain.Principal) (*domain.ResolvedIdentity, error)
}

// ProfileGateway persists profile edits and then forces a fresh resolution
// instead of patching the cached identity.
type ProfileGateway struct {
	store    ports.ProfileStore
	validate *validation.Validator
	log      zerolog.Logger
}

func NewProfileGateway(store ports.ProfileStore, v *validation.Validator, log zerolog.Logger) *ProfileGateway {
	return &ProfileGateway{store: store, validate: v, log: log}
}

// UpdateProfile writes patch on behalf of id and returns the identity
// published by the re-resolution through r.
func (g *ProfileGateway) UpdateProfile(ctx context.Context, r Refresher, id *domain.ResolvedIdentity, patch ports.ProfilePatch) (*domain.ResolvedIdentity, error) {
	if patch == nil {
		return nil, domain.NewValidationError("profile patch is required")
	}
	if v := policy.Authorize(id, patch.Role()); !v.Allowed {
		return nil, v.Err()
	}
	if patch.Owner() != id.PrincipalID {
		g.log.Warn().
			Str("principal_id", id.PrincipalID).
			Str("owner", patch.Owner()).
			Msg("profile write for another principal rejected")
		return nil, domain.ErrPrincipalMismatch
	}
	if patch.Empty() {
		return nil, domain.NewValidationError("at least one profile field is required")
	}
	if err := g.validate.Validate(patch); err != nil {
		return nil, err
	}

	if err := g.store.UpdateProfile(ctx, patch); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	updated, err := r.Refresh(ctx, nil)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrSessionExpired
	}
	return updated, nil
}
