package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/tms/internal/domain"
	"github.com/spec-kit/tms/internal/events"
	"github.com/spec-kit/tms/internal/observability"
	"github.com/spec-kit/tms/internal/repository"
	"github.com/spec-kit/tms/internal/workflow"
)

type fakeUserRepo struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[string]*domain.User),
	}
	for _, u := range users {
		repo.byEmail[u.Email] = u
		repo.byID[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	if _, exists := r.byEmail[user.Email]; exists {
		return errors.New("unique violation")
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := r.byID[id]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if user, ok := r.byEmail[email]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) UpdatePartial(_ context.Context, id string, patch repository.UserPatch) (*domain.User, error) {
	user, ok := r.byID[id]
	if !ok || patch.Empty() {
		return nil, pgx.ErrNoRows
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Skills != nil {
		user.Skills = *patch.Skills
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	user.UpdatedAt = time.Now()
	return user, nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, *u)
	}
	return out, nil
}

type fakeTicketRepo struct {
	tickets    []*domain.Ticket
	lastFilter repository.TicketFilter
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets = append(r.tickets, ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	for _, t := range r.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) GetByIDForCreator(_ context.Context, id, creatorID string) (*domain.Ticket, error) {
	for _, t := range r.tickets {
		if t.ID == id && t.CreatedBy == creatorID {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.lastFilter = filter
	out := make([]domain.Ticket, 0)
	for _, t := range r.tickets {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

// memStore is an in-memory events.Store for exercising the real dispatcher.
type memStore struct {
	mu         sync.Mutex
	rows       []events.Event
	failInsert bool
}

func (s *memStore) Insert(_ context.Context, event *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return errors.New("outbox unavailable")
	}
	s.rows = append(s.rows, *event)
	return nil
}

func (s *memStore) ListUndelivered(_ context.Context, _ int) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event{}, s.rows...), nil
}

func (s *memStore) MarkDelivered(_ context.Context, _ string) error {
	return nil
}

func newTestBus(store events.Store) *events.Dispatcher {
	engine := workflow.NewEngine(workflow.NewMemoryCheckpointStore(), zap.NewNop(), time.Millisecond)
	return events.NewDispatcher(store, engine, zap.NewNop(), observability.NewMetrics(), time.Millisecond)
}
