package ports

import (
	"context"

	"github.com/carebridge/identity-core/internal/core/domain"
)

// ProfileReader is the read side used by identity resolution. Missing rows
// are reported as nil with a nil error; errors mean the store failed.
type ProfileReader interface {
	GetRoleAssignment(ctx context.Context, principalID string) (*domain.RoleAssignment, error)
	GetDoctorProfile(ctx context.Context, principalID string) (*domain.DoctorProfile, error)
	GetPatientProfile(ctx context.Context, principalID string) (*domain.PatientProfile, error)
}

// ProfileStore holds role assignments and per-role profiles.
type ProfileStore interface {
	ProfileReader

	// InsertRoleAssignment fails with domain.ErrRoleAlreadyAssigned when the
	// principal already has a role.
	InsertRoleAssignment(ctx context.Context, a domain.RoleAssignment) error
	InsertProfile(ctx context.Context, p domain.Profile) error
	// UpdateProfile applies the non-nil fields of patch to the profile of
	// patch.Owner(). It fails with domain.ErrProfileNotFound when no row matches.
	UpdateProfile(ctx context.Context, patch ProfilePatch) error
}

// DoctorFilter selects doctor profiles for review.
type DoctorFilter struct {
	Status domain.ApprovalStatus // empty = any
	Page   int                   // 1-based
	Limit  int
}

// DoctorDirectory is the administrative view over doctor profiles.
type DoctorDirectory interface {
	ListDoctorProfiles(ctx context.Context, filter DoctorFilter) ([]*domain.DoctorProfile, int64, error)
	SetDoctorApproval(ctx context.Context, principalID string, status domain.ApprovalStatus, reviewer string) error
}
