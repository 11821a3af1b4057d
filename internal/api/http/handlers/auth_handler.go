package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tms/internal/api/dto"
	"github.com/spec-kit/tms/internal/auth"
	"github.com/spec-kit/tms/internal/service"
	apperrors "github.com/spec-kit/tms/pkg/util"
)

// AuthHandler exposes the /api/auth endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, err := h.auth.Signup(c.UserContext(), req.Name, req.Email, req.Password, req.Skills)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"user":  dto.NewUserResponse(user),
		"token": token,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"user":  dto.NewUserResponse(user),
		"token": token,
	})
}

// Logout handles POST /api/auth/logout. The auth middleware has already
// rejected missing or invalid tokens; this is a stateless acknowledgement.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

// UpdateUser handles POST /api/auth/update-user.
func (h *AuthHandler) UpdateUser(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.auth.UpdateUser(c.UserContext(), principal, req.Email, service.UserUpdateInput{
		Name:   req.Name,
		Skills: req.Skills,
		Role:   req.Role,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "user updated",
		"user":    dto.NewUserResponse(user),
	})
}

// GetUsers handles POST /api/auth/get-users.
func (h *AuthHandler) GetUsers(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)

	users, err := h.auth.ListUsers(c.UserContext(), principal)
	if err != nil {
		return err
	}

	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(out)
}
