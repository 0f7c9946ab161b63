package auth

import (
	"errors"
	"strings"
)

// Role is the kind of account a session belongs to.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RoleAdmin   Role = "admin"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RolePatient, RoleDoctor, RoleNurse, RoleAdmin}
}

// ParseRole accepts any case and surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleNurse, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// LoginPath is where a visitor without the role is sent.
func (r Role) LoginPath() string { return "/login/" + string(r) }

// DashboardPath is the landing page after a successful login.
func (r Role) DashboardPath() string { return "/dashboard/" + string(r) }
