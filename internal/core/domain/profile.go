package domain

import (
	"slices"
	"time"
)

// ApprovalStatus is the administrative review state of a doctor.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// Profile is the role-specific record attached to a principal. Only the
// profile types in this package implement it.
type Profile interface {
	Role() Role
	OwnerID() string
	// Clone returns a deep copy that shares no memory with the receiver.
	Clone() Profile
	isProfile()
}

// DoctorProfile is the practitioner profile. IsApproved stays false until an
// administrator approves the doctor.
type DoctorProfile struct {
	PrincipalID     string         `json:"principal_id"`
	FirstName       string         `json:"first_name"`
	LastName        string         `json:"last_name"`
	Phone           string         `json:"phone"`
	Nationality     string         `json:"nationality"`
	Specialties     []string       `json:"specialties"`
	Bio             string         `json:"bio,omitempty"`
	Website         string         `json:"website,omitempty"`
	SocialMedia     string         `json:"social_media,omitempty"`
	ProfileImageURL string         `json:"profile_image_url,omitempty"`
	IsApproved      bool           `json:"is_approved"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (p *DoctorProfile) Role() Role      { return RoleDoctor }
func (p *DoctorProfile) OwnerID() string { return p.PrincipalID }
func (p *DoctorProfile) isProfile()      {}

func (p *DoctorProfile) Clone() Profile {
	c := *p
	c.Specialties = slices.Clone(p.Specialties)
	if p.ReviewedAt != nil {
		t := *p.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

// PatientProfile carries no approval flag; patients are trusted implicitly.
type PatientProfile struct {
	PrincipalID string    `json:"principal_id"`
	Alias       string    `json:"alias"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *PatientProfile) Role() Role      { return RolePatient }
func (p *PatientProfile) OwnerID() string { return p.PrincipalID }
func (p *PatientProfile) isProfile()      {}

func (p *PatientProfile) Clone() Profile {
	c := *p
	return &c
}
