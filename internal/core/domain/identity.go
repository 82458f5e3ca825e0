package domain

// ResolvedIdentity is the fully resolved view of a signed-in principal. It is
// derived from the principal, its role assignment and its profile, and is
// rebuilt rather than modified whenever any of those change. Profile is nil
// for administrators.
type ResolvedIdentity struct {
	PrincipalID     string  `json:"principal_id"`
	Email           string  `json:"email"`
	Role            Role    `json:"role"`
	Profile         Profile `json:"profile,omitempty"`
	EmailVerified   bool    `json:"is_email_verified"`
	AccountApproved bool    `json:"is_account_approved"`
}

// Clone returns a deep copy of id. Clone of nil is nil.
func (id *ResolvedIdentity) Clone() *ResolvedIdentity {
	if id == nil {
		return nil
	}
	c := *id
	if id.Profile != nil {
		c.Profile = id.Profile.Clone()
	}
	return &c
}

// Principal rebuilds the principal the identity was resolved from.
func (id *ResolvedIdentity) Principal() *Principal {
	if id == nil {
		return nil
	}
	return &Principal{ID: id.PrincipalID, Email: id.Email, EmailVerified: id.EmailVerified}
}

// DoctorProfile returns the doctor profile, or nil for any other role.
func (id *ResolvedIdentity) DoctorProfile() *DoctorProfile {
	if id == nil {
		return nil
	}
	p, _ := id.Profile.(*DoctorProfile)
	return p
}

// PatientProfile returns the patient profile, or nil for any other role.
func (id *ResolvedIdentity) PatientProfile() *PatientProfile {
	if id == nil {
		return nil
	}
	p, _ := id.Profile.(*PatientProfile)
	return p
}
