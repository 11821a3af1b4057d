package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/tms/internal/auth"
	"github.com/spec-kit/tms/internal/config"
	"github.com/spec-kit/tms/internal/domain"
	"github.com/spec-kit/tms/internal/events"
	apperrors "github.com/spec-kit/tms/pkg/util"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
		},
	}
}

func newAuthService(repo *fakeUserRepo, store *memStore) *AuthService {
	return NewAuthService(testConfig(), repo, newTestBus(store))
}

func adminPrincipal() *auth.Principal {
	return &auth.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
}

func TestSignup_CreatesUserAndEmitsEvent(t *testing.T) {
	repo := newFakeUserRepo()
	store := &memStore{}
	svc := newAuthService(repo, store)

	user, token, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "hunter2", []string{"go"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, domain.RoleUser, user.Role, "signup always grants the default role")
	assert.NotEqual(t, "hunter2", user.PasswordHash)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)

	require.Len(t, store.rows, 1)
	assert.Equal(t, events.EventUserSignedUp, store.rows[0].Name)
	var data events.UserSignedUpData
	require.NoError(t, json.Unmarshal(store.rows[0].Data, &data))
	assert.Equal(t, "ada@example.com", data.Email)
}

func TestSignup_MissingFields(t *testing.T) {
	svc := newAuthService(newFakeUserRepo(), &memStore{})

	for _, tc := range []struct{ name, email, password string }{
		{"", "a@b.c", "pw"},
		{"Ada", "", "pw"},
		{"Ada", "a@b.c", ""},
		{"  ", "a@b.c", "pw"},
	} {
		_, _, err := svc.Signup(context.Background(), tc.name, tc.email, tc.password, nil)
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo, &memStore{})

	_, _, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "pw", nil)
	require.NoError(t, err)

	_, _, err = svc.Signup(context.Background(), "Other Ada", "ada@example.com", "pw2", nil)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, 400, domainErr.HTTPStatus)
}

func TestSignup_EventPublishFailureDoesNotFailSignup(t *testing.T) {
	repo := newFakeUserRepo()
	store := &memStore{failInsert: true}
	svc := newAuthService(repo, store)

	user, token, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "pw", nil)
	require.NoError(t, err, "signup emission is best-effort")
	assert.NotNil(t, user)
	assert.NotEmpty(t, token)
}

func TestLogin_UniformErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo, &memStore{})
	_, _, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "correct", nil)
	require.NoError(t, err)

	_, _, errUnknown := svc.Login(context.Background(), "ghost@example.com", "whatever")
	_, _, errWrongPw := svc.Login(context.Background(), "ada@example.com", "incorrect")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error(), "no account-enumeration signal")
	assert.Equal(t, apperrors.ToDomainError(errUnknown).Code, apperrors.ToDomainError(errWrongPw).Code)
}

func TestLogin_Succeeds(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo, &memStore{})
	created, _, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "correct", nil)
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), "ada@example.com", "correct")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, created.Role, claims.Role)
}

func TestUpdateUser_RequiresAdmin(t *testing.T) {
	svc := newAuthService(newFakeUserRepo(), &memStore{})

	for _, actor := range []*auth.Principal{
		nil,
		{UserID: "u1", Role: domain.RoleUser},
		{UserID: "u2", Role: domain.RoleModerator},
	} {
		_, err := svc.UpdateUser(context.Background(), actor, "a@b.c", UserUpdateInput{Name: "X"})
		require.Error(t, err)
		assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
	}
}

func TestUpdateUser_UnknownTarget(t *testing.T) {
	svc := newAuthService(newFakeUserRepo(), &memStore{})

	_, err := svc.UpdateUser(context.Background(), adminPrincipal(), "ghost@example.com", UserUpdateInput{Name: "X"})
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestUpdateUser_EmptyPatchRejected(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser})
	svc := newAuthService(repo, &memStore{})

	for _, input := range []UserUpdateInput{
		{},
		{Name: "   "},
	} {
		_, err := svc.UpdateUser(context.Background(), adminPrincipal(), "ada@example.com", input)
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
	}
}

func TestUpdateUser_SkillsClearVsOmit(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{
		ID: "u1", Name: "Ada", Email: "ada@example.com",
		Skills: []string{"go", "sql"}, Role: domain.RoleUser,
	})
	svc := newAuthService(repo, &memStore{})

	// Omitted skills stay untouched.
	updated, err := svc.UpdateUser(context.Background(), adminPrincipal(), "ada@example.com", UserUpdateInput{Name: "Ada L"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "sql"}, updated.Skills)

	// An explicit empty array clears them.
	empty := []string{}
	updated, err = svc.UpdateUser(context.Background(), adminPrincipal(), "ada@example.com", UserUpdateInput{Skills: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.Skills)
}

func TestUpdateUser_RejectsUnknownRole(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser})
	svc := newAuthService(repo, &memStore{})

	_, err := svc.UpdateUser(context.Background(), adminPrincipal(), "ada@example.com", UserUpdateInput{Role: "admim"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestUpdateUser_ChangesRole(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser})
	svc := newAuthService(repo, &memStore{})

	updated, err := svc.UpdateUser(context.Background(), adminPrincipal(), "ada@example.com", UserUpdateInput{Role: "moderator"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, updated.Role)
}

func TestListUsers_RequiresAdmin(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser})
	svc := newAuthService(repo, &memStore{})

	_, err := svc.ListUsers(context.Background(), &auth.Principal{UserID: "u1", Role: domain.RoleUser})
	require.Error(t, err)

	users, err := svc.ListUsers(context.Background(), adminPrincipal())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
