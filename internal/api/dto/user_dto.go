package dto

import (
	"time"

	"github.com/spec-kit/tms/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Skills   []string `json:"skills"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest is the admin partial-update payload. Skills uses a
// pointer so an explicit empty array clears skills while omission keeps them.
type UpdateUserRequest struct {
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Skills *[]string `json:"skills"`
	Role   string    `json:"role"`
}

// UserResponse is the externally visible account shape. The password hash
// has no field here and can never serialize.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Skills    []string    `json:"skills"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserResponse maps the domain model onto the response shape.
func NewUserResponse(user *domain.User) UserResponse {
	skills := user.Skills
	if skills == nil {
		skills = []string{}
	}
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Skills:    skills,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
