package models

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Role is the membership role of a user.
type Role string

const (
	RoleApplicant  Role = "applicant"
	RoleIntern     Role = "intern"
	RoleMember     Role = "member"
	RoleViceLeader Role = "vice_leader"
	RoleLeader     Role = "leader"
	RoleAdmin      Role = "admin"
)

var roles = []Role{RoleApplicant, RoleIntern, RoleMember, RoleViceLeader, RoleLeader, RoleAdmin}

// FormalRoles returns the roles that occupy a formal, paid seat.
func FormalRoles() []Role {
	return []Role{RoleMember, RoleViceLeader}
}

// IsFormalSeat reports whether the role occupies a formal seat.
func (r Role) IsFormalSeat() bool {
	return slices.Contains(FormalRoles(), r)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(roles, r)
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}
