package domain

import (
	"strings"
	"time"
)

// Role is the permanent role a principal is registered under.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises s and returns the matching role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// RoleAssignment maps a principal to exactly one role. It is written once at
// registration and never updated or deleted.
type RoleAssignment struct {
	PrincipalID string
	Role        Role
	CreatedAt   time.Time
}
