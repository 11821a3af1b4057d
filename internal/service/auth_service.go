package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tms/internal/auth"
	"github.com/spec-kit/tms/internal/config"
	"github.com/spec-kit/tms/internal/domain"
	"github.com/spec-kit/tms/internal/events"
	"github.com/spec-kit/tms/internal/repository"
	apperrors "github.com/spec-kit/tms/pkg/util"
)

// UserUpdateInput is the update-user request surface. Skills pointer
// semantics: nil leaves skills alone, empty slice clears them.
type UserUpdateInput struct {
	Name   string
	Skills *[]string
	Role   string
}

// AuthService coordinates signup, login and admin user management.
type AuthService struct {
	users      repository.UserRepository
	bus        *events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository, bus *events.Dispatcher) *AuthService {
	return &AuthService{
		users:      users,
		bus:        bus,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Signup registers a new account with the default role and emits
// user/signUp best-effort: a publish failure is logged by the bus and never
// fails the request.
func (s *AuthService) Signup(ctx context.Context, name, email, password string, skills []string) (*domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, "", apperrors.NewValidationError("name, email and password are required", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", apperrors.NewConflict("user already exists", map[string]any{"email": email})
	} else if err != pgx.ErrNoRows {
		return nil, "", err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", err
	}

	if skills == nil {
		skills = []string{}
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Skills:       skills,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	payload, _ := json.Marshal(events.UserSignedUpData{Email: user.Email})
	_ = s.bus.Publish(ctx, events.Event{
		Name: events.EventUserSignedUp,
		Data: payload,
	}, events.DeliveryBestEffort)

	token, _, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password produce the same error so callers cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	if email == "" || password == "" {
		return nil, "", apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == pgx.ErrNoRows {
		return nil, "", invalidCredentials()
	}
	if err != nil {
		return nil, "", err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", invalidCredentials()
	}

	token, _, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout acknowledges a valid session. Tokens are self-contained signed
// claims, so nothing is revoked server-side; validity simply runs out at
// expiry.
func (s *AuthService) Logout(_ context.Context) error {
	return nil
}

// UpdateUser applies an admin-only partial update to the user identified by
// email. Blank fields are treated as omitted; an effectively empty patch is
// a validation error.
func (s *AuthService) UpdateUser(ctx context.Context, actor *auth.Principal, targetEmail string, input UserUpdateInput) (*domain.User, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if strings.TrimSpace(targetEmail) == "" {
		return nil, apperrors.NewValidationError("email is required", nil)
	}

	target, err := s.users.GetByEmail(ctx, targetEmail)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NewNotFound("user", map[string]any{"email": targetEmail})
	}
	if err != nil {
		return nil, err
	}

	var patch repository.UserPatch
	if name := strings.TrimSpace(input.Name); name != "" {
		patch.Name = &name
	}
	if input.Skills != nil {
		patch.Skills = input.Skills
	}
	if input.Role != "" {
		role, err := auth.ParseRole(input.Role)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
		patch.Role = &role
	}
	if patch.Empty() {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}

	return s.users.UpdatePartial(ctx, target.ID, patch)
}

// ListUsers returns all accounts; admin only.
func (s *AuthService) ListUsers(ctx context.Context, actor *auth.Principal) ([]domain.User, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	return s.users.List(ctx)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func invalidCredentials() error {
	return apperrors.NewDomainError("INVALID_CREDENTIALS", "invalid credentials", http.StatusBadRequest, nil)
}
