package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/tms/internal/api/http/handlers"
	"github.com/spec-kit/tms/internal/auth"
	"github.com/spec-kit/tms/internal/config"
	"github.com/spec-kit/tms/internal/domain"
	"github.com/spec-kit/tms/internal/events"
	"github.com/spec-kit/tms/internal/observability"
	"github.com/spec-kit/tms/internal/repository"
	"github.com/spec-kit/tms/internal/service"
	"github.com/spec-kit/tms/internal/workflow"
)

type stubUserRepo struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) UpdatePartial(_ context.Context, id string, patch repository.UserPatch) (*domain.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Skills != nil {
		u.Skills = *patch.Skills
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	return u, nil
}

func (r *stubUserRepo) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, *u)
	}
	return out, nil
}

type stubTicketRepo struct {
	tickets []*domain.Ticket
}

func (r *stubTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	r.tickets = append(r.tickets, ticket)
	return nil
}

func (r *stubTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	for _, t := range r.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubTicketRepo) GetByIDForCreator(_ context.Context, id, creatorID string) (*domain.Ticket, error) {
	for _, t := range r.tickets {
		if t.ID == id && t.CreatedBy == creatorID {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0)
	for _, t := range r.tickets {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

type stubEventStore struct {
	rows []events.Event
}

func (s *stubEventStore) Insert(_ context.Context, event *events.Event) error {
	s.rows = append(s.rows, *event)
	return nil
}

func (s *stubEventStore) ListUndelivered(_ context.Context, _ int) ([]events.Event, error) {
	return nil, errors.New("not polled in tests")
}

func (s *stubEventStore) MarkDelivered(_ context.Context, _ string) error {
	return nil
}

type testApp struct {
	app   *fiber.App
	users *stubUserRepo
	auth  *service.AuthService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
		},
	}

	users := &stubUserRepo{byEmail: map[string]*domain.User{}, byID: map[string]*domain.User{}}
	tickets := &stubTicketRepo{}
	engine := workflow.NewEngine(workflow.NewMemoryCheckpointStore(), zap.NewNop(), time.Millisecond)
	bus := events.NewDispatcher(&stubEventStore{}, engine, zap.NewNop(), observability.NewMetrics(), time.Second)

	authService := service.NewAuthService(cfg, users, bus)
	ticketService := service.NewTicketService(tickets, bus)

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:  zap.NewNop(),
		Metrics: observability.NewMetrics(),
	})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Events:         handlers.NewEventsHandler(bus),
		AuthMiddleware: auth.NewMiddleware(authService.TokenManager()),
	})

	return &testApp{app: app, users: users, auth: authService}
}

func (ta *testApp) request(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ta.app.Test(req, 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (ta *testApp) signup(t *testing.T, name, email string) string {
	t.Helper()
	resp, body := ta.request(t, "POST", "/api/auth/signup", "", fiber.Map{
		"name": name, "email": email, "password": "pw",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["token"].(string)
}

func (ta *testApp) adminToken(t *testing.T) string {
	t.Helper()
	ta.signup(t, "Root", "root@example.com")
	ta.users.byEmail["root@example.com"].Role = domain.RoleAdmin

	resp, body := ta.request(t, "POST", "/api/auth/login", "", fiber.Map{
		"email": "root@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["token"].(string)
}

func TestHealthEndpoint(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotNil(t, body["timestamp"])
}

func TestSignupEndpoint(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, "POST", "/api/auth/signup", "", fiber.Map{
		"name": "Ada", "email": "ada@example.com", "password": "pw", "skills": []string{"go"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	user := body["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
	_, hasPassword := user["password"]
	assert.False(t, hasPassword)

	// Missing fields and duplicates are both 400s.
	resp, _ = ta.request(t, "POST", "/api/auth/signup", "", fiber.Map{"email": "x@y.z"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ta.request(t, "POST", "/api/auth/signup", "", fiber.Map{
		"name": "Ada", "email": "ada@example.com", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogoutEndpoint(t *testing.T) {
	ta := newTestApp(t)
	token := ta.signup(t, "Ada", "ada@example.com")

	resp, _ := ta.request(t, "POST", "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ta.request(t, "POST", "/api/auth/logout", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := ta.request(t, "POST", "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["message"])
}

func TestAdminOnlyEndpoints(t *testing.T) {
	ta := newTestApp(t)
	userToken := ta.signup(t, "Ada", "ada@example.com")
	adminToken := ta.adminToken(t)

	resp, _ := ta.request(t, "POST", "/api/auth/get-users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ta.request(t, "POST", "/api/auth/get-users", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ta.request(t, "POST", "/api/auth/update-user", userToken, fiber.Map{
		"email": "ada@example.com", "name": "Eve",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := ta.request(t, "POST", "/api/auth/update-user", adminToken, fiber.Map{
		"email": "ada@example.com", "role": "moderator",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := body["user"].(map[string]any)
	assert.Equal(t, "moderator", updated["role"])

	resp, _ = ta.request(t, "POST", "/api/auth/update-user", adminToken, fiber.Map{
		"email": "ghost@example.com", "name": "X",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTicketEndpoints(t *testing.T) {
	ta := newTestApp(t)
	adaToken := ta.signup(t, "Ada", "ada@example.com")
	bobToken := ta.signup(t, "Bob", "bob@example.com")

	resp, _ := ta.request(t, "POST", "/api/ticket/", "", fiber.Map{"title": "t", "description": "d"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := ta.request(t, "POST", "/api/ticket/", adaToken, fiber.Map{
		"title": "printer on fire", "description": "again",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticket := body["ticket"].(map[string]any)
	ticketID := ticket["id"].(string)

	// Creator sees it, another plain user does not.
	resp, _ = ta.request(t, "GET", "/api/ticket/"+ticketID, adaToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ta.request(t, "GET", "/api/ticket/"+ticketID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ta.request(t, "GET", "/api/ticket/not-a-uuid", adaToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ta.request(t, "GET", "/api/ticket/?page=0&limit=999", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(100), body["limit"])
	assert.Equal(t, float64(0), body["count"])
}

func TestEventInjectionEndpoint(t *testing.T) {
	ta := newTestApp(t)

	resp, _ := ta.request(t, "POST", "/api/events", "", fiber.Map{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.request(t, "POST", "/api/events", "", fiber.Map{
		"name": "user/signUp",
		"data": fiber.Map{"email": "ada@example.com"},
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
