package handler

import (
	"time"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// errorResponse documents the error envelope rendered by the API error handler.
type errorResponse struct {
	Error    string   `json:"error"`
	Details  []string `json:"details,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Redirect string   `json:"redirect,omitempty"`
}

// --- Auth ---

// registerRequest carries every sign-up field; role selects which apply.
type registerRequest struct {
	Role     string `json:"role"     validate:"required,oneof=patient doctor"`
	Email    string `json:"email"`
	Password string `json:"password"`

	// patient
	Alias string `json:"alias"`

	// doctor
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Phone           string   `json:"phone"`
	Nationality     string   `json:"nationality"`
	Specialties     []string `json:"specialties"`
	Website         string   `json:"website"`
	SocialMedia     string   `json:"social_media"`
	ProfileImageURL string   `json:"profile_image_url"`

	Bio string `json:"bio"`
}

// registration converts the request into the sealed payload of its role.
// The service validates the per-role fields.
func (r registerRequest) registration() ports.Registration {
	creds := ports.Credentials{Email: r.Email, Password: r.Password}
	if r.Role == string(domain.RoleDoctor) {
		return ports.DoctorRegistration{
			Credentials:     creds,
			FirstName:       r.FirstName,
			LastName:        r.LastName,
			Phone:           r.Phone,
			Nationality:     r.Nationality,
			Specialties:     r.Specialties,
			Bio:             r.Bio,
			Website:         r.Website,
			SocialMedia:     r.SocialMedia,
			ProfileImageURL: r.ProfileImageURL,
		}
	}
	return ports.PatientRegistration{Credentials: creds, Alias: r.Alias, Bio: r.Bio}
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updatePasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token     string                   `json:"token"`
	ExpiresAt time.Time                `json:"expires_at"`
	Identity  *domain.ResolvedIdentity `json:"identity"`
}

func newAuthResponse(res *ports.AuthResult) authResponse {
	return authResponse{
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
		Identity:  res.Identity,
	}
}

// --- Profile ---

type identityResponse struct {
	Identity *domain.ResolvedIdentity `json:"identity"`
}

type accessResponse struct {
	Role     domain.Role       `json:"role"`
	Allowed  bool              `json:"allowed"`
	Reason   domain.DenyReason `json:"reason,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
	// PendingApproval is advisory: an unapproved doctor may open doctor
	// routes but not trusted features.
	PendingApproval bool `json:"pending_approval,omitempty"`
}

// --- Admin ---

type doctorPageResponse struct {
	Items      []*domain.DoctorProfile `json:"items"`
	Total      int64                   `json:"total"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
	TotalPages int                     `json:"total_pages"`
}
