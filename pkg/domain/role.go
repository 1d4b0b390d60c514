package domain

import dErrors "preclear/pkg/domain-errors"

// Role is a domain value that identifies what a user is allowed to do.
// Invariant: the value must be one of the supported roles.
//
// Usage: construct via ParseRole at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type Role string

const (
	RoleShipper Role = "shipper"
	RoleBroker  Role = "broker"
	RoleAdmin   Role = "admin"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleShipper: true,
	RoleBroker:  true,
	RoleAdmin:   true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.NewField(dErrors.CodeInvalidInput, "role", "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.NewField(dErrors.CodeInvalidInput, "role", "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool { return validRoles[r] }

// String returns the string representation of the role.
func (r Role) String() string { return string(r) }
