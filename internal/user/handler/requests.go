package handler

import (
	"time"

	"preclear/internal/user/models"
	"preclear/internal/user/service"
	id "preclear/pkg/domain"
)

type createUserRequest struct {
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	CompanyName string `json:"companyName,omitempty"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

func (r createUserRequest) toInput() (service.CreateInput, error) {
	role, err := id.ParseRole(r.Role)
	if err != nil {
		return service.CreateInput{}, err
	}
	return service.CreateInput{
		Email:       r.Email,
		FullName:    r.FullName,
		CompanyName: r.CompanyName,
		Role:        role,
		Password:    r.Password,
	}, nil
}

// updateUserRequest carries the whitelisted mutable fields, all optional. An
// absent password preserves the stored hash.
type updateUserRequest struct {
	Email       *string `json:"email,omitempty"`
	FullName    *string `json:"fullName,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
	Role        *string `json:"role,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	Password    *string `json:"password,omitempty"`
}

func (r updateUserRequest) toFields() (service.UpdateFields, error) {
	fields := service.UpdateFields{
		Email:       r.Email,
		FullName:    r.FullName,
		CompanyName: r.CompanyName,
		Active:      r.Active,
		Password:    r.Password,
	}
	if r.Role != nil {
		role, err := id.ParseRole(*r.Role)
		if err != nil {
			return service.UpdateFields{}, err
		}
		fields.Role = &role
	}
	return fields, nil
}

// userResponse is the account shape returned by every endpoint. There is no
// password field here on purpose.
type userResponse struct {
	ID          id.UserID `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	CompanyName string    `json:"companyName,omitempty"`
	Role        string    `json:"role"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func fromUser(u models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		CompanyName: u.CompanyName,
		Role:        u.Role.String(),
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
