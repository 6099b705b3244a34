package auth

import "fmt"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

var knownRoles = map[Role]bool{
	RolePatient: true,
	RoleDoctor:  true,
	RoleStaff:   true,
	RoleAdmin:   true,
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !knownRoles[r] {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool { return knownRoles[r] }

// Privileged roles may act on any patient's or doctor's records.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleStaff
}
