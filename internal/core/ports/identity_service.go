package ports

import (
	"context"

	"github.com/carebridge/identity-core/internal/core/domain"
)

// Credentials are the sign-up fields shared by every role.
type Credentials struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Registration is a role-discriminated sign-up payload. Exactly one variant
// exists per role and only this package defines them.
type Registration interface {
	Role() domain.Role
	Account() Credentials
	isRegistration()
}

// PatientRegistration signs up a patient.
type PatientRegistration struct {
	Credentials
	Alias string `json:"alias" validate:"required,min=2,max=30"`
	Bio   string `json:"bio"   validate:"max=1000"`
}

// DoctorRegistration signs up a doctor. The account starts unapproved.
type DoctorRegistration struct {
	Credentials
	FirstName       string   `json:"first_name"        validate:"required,max=100"`
	LastName        string   `json:"last_name"         validate:"required,max=100"`
	Phone           string   `json:"phone"             validate:"required,max=32"`
	Nationality     string   `json:"nationality"       validate:"required,max=64"`
	Specialties     []string `json:"specialties"       validate:"required,min=1,dive,required,max=100"`
	Bio             string   `json:"bio"               validate:"max=2000"`
	Website         string   `json:"website"           validate:"omitempty,url"`
	SocialMedia     string   `json:"social_media"      validate:"max=200"`
	ProfileImageURL string   `json:"profile_image_url" validate:"omitempty,url"`
}

// AdminRegistration creates an administrator; admins carry no profile.
type AdminRegistration struct {
	Credentials
}

func (r PatientRegistration) Role() domain.Role    { return domain.RolePatient }
func (r PatientRegistration) Account() Credentials { return r.Credentials }
func (PatientRegistration) isRegistration()        {}

func (r DoctorRegistration) Role() domain.Role    { return domain.RoleDoctor }
func (r DoctorRegistration) Account() Credentials { return r.Credentials }
func (DoctorRegistration) isRegistration()        {}

func (r AdminRegistration) Role() domain.Role    { return domain.RoleAdmin }
func (r AdminRegistration) Account() Credentials { return r.Credentials }
func (AdminRegistration) isRegistration()        {}

// ProfilePatch is a role-discriminated partial profile update. Nil fields are
// left unchanged.
type ProfilePatch interface {
	Role() domain.Role
	Owner() string
	Empty() bool
	isProfilePatch()
}

// DoctorProfilePatch edits a doctor's own profile. Approval is not editable here.
type DoctorProfilePatch struct {
	PrincipalID     string   `json:"-"                 validate:"required"`
	FirstName       *string  `json:"first_name"        validate:"omitempty,min=1,max=100"`
	LastName        *string  `json:"last_name"         validate:"omitempty,min=1,max=100"`
	Phone           *string  `json:"phone"             validate:"omitempty,min=1,max=32"`
	Nationality     *string  `json:"nationality"       validate:"omitempty,min=1,max=64"`
	Specialties     []string `json:"specialties"       validate:"omitempty,min=1,dive,required,max=100"`
	Bio             *string  `json:"bio"               validate:"omitempty,max=2000"`
	Website         *string  `json:"website"           validate:"omitempty,url"`
	SocialMedia     *string  `json:"social_media"      validate:"omitempty,max=200"`
	ProfileImageURL *string  `json:"profile_image_url" validate:"omitempty,url"`
}

// PatientProfilePatch edits a patient's own profile.
type PatientProfilePatch struct {
	PrincipalID string  `json:"-"     validate:"required"`
	Alias       *string `json:"alias" validate:"omitempty,min=2,max=30"`
	Bio         *string `json:"bio"   validate:"omitempty,max=1000"`
}

func (p DoctorProfilePatch) Role() domain.Role { return domain.RoleDoctor }
func (p DoctorProfilePatch) Owner() string     { return p.PrincipalID }
func (DoctorProfilePatch) isProfilePatch()     {}

func (p DoctorProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.Nationality == nil &&
		p.Specialties == nil && p.Bio == nil && p.Website == nil && p.SocialMedia == nil &&
		p.ProfileImageURL == nil
}

func (p PatientProfilePatch) Role() domain.Role { return domain.RolePatient }
func (p PatientProfilePatch) Owner() string     { return p.PrincipalID }
func (PatientProfilePatch) isProfilePatch()     {}

func (p PatientProfilePatch) Empty() bool {
	return p.Alias == nil && p.Bio == nil
}

// AuthResult is returned by operations that open or renew a session.
// Identity is nil when the principal has no role assignment yet.
type AuthResult struct {
	Session  *domain.Session
	Identity *domain.ResolvedIdentity
}

// IdentityService is the surface consumed by the presentation layer.
type IdentityService interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, reg Registration) (*AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	RefreshSession(ctx context.Context, sessionID string) (*AuthResult, error)
	// Authenticate turns a session token into the session's published
	// identity, restoring the session if it is not resident.
	Authenticate(ctx context.Context, token string) (*AuthResult, error)
	CurrentIdentity(sessionID string) *domain.ResolvedIdentity
	UpdateProfile(ctx context.Context, sessionID string, patch ProfilePatch) (*domain.ResolvedIdentity, error)
}

// AccountService covers verification and password flows.
type AccountService interface {
	SendVerification(ctx context.Context, email string) error
	Verify(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	UpdatePassword(ctx context.Context, sessionID, newPassword string) error
}

// DoctorPage is one page of doctor profiles.
type DoctorPage struct {
	Items      []*domain.DoctorProfile
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// AdminService covers doctor review.
type AdminService interface {
	ListDoctors(ctx context.Context, filter DoctorFilter) (*DoctorPage, error)
	ReviewDoctor(ctx context.Context, reviewer *domain.ResolvedIdentity, principalID string, decision domain.ApprovalStatus) (*domain.DoctorProfile, error)
}
