// Package models defines the user aggregate.
package models

import (
	"strings"
	"time"

	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
)

// User is an account that can authenticate against the service.
//
// Invariants:
//   - Email is non-empty, lowercased and unique across the system
//   - Role is one of the closed pkg/domain roles
//   - PasswordHash is a bcrypt hash and is never serialized
type User struct {
	ID           id.UserID
	Email        string
	FullName     string
	CompanyName  string
	Role         id.Role
	PasswordHash []byte
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the structural invariants. The hash is checked for presence
// only; its construction is the service's job.
func (u *User) Validate() error {
	if u.Email == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "email", "email is required")
	}
	at := strings.IndexByte(u.Email, '@')
	if at <= 0 || at == len(u.Email)-1 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "email", "email is malformed")
	}
	if u.FullName == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "fullName", "full name is required")
	}
	if !u.Role.IsValid() {
		return dErrors.NewField(dErrors.CodeInvalidInput, "role", "unknown role")
	}
	if len(u.PasswordHash) == 0 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "password", "password is required")
	}
	return nil
}
