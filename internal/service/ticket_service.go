package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tms/internal/auth"
	"github.com/spec-kit/tms/internal/domain"
	"github.com/spec-kit/tms/internal/events"
	"github.com/spec-kit/tms/internal/repository"
	apperrors "github.com/spec-kit/tms/pkg/util"
)

// TicketPage is the paginated listing result.
type TicketPage struct {
	Page    int
	Limit   int
	Count   int
	Tickets []domain.Ticket
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// TicketService coordinates ticket workflows under role-based visibility.
type TicketService struct {
	tickets repository.TicketRepository
	bus     *events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(tickets repository.TicketRepository, bus *events.Dispatcher) *TicketService {
	return &TicketService{tickets: tickets, bus: bus}
}

// Create persists a ticket for the actor and emits ticket/created with the
// required delivery policy: losing the event would silently skip the
// promised follow-up, so a publish failure fails the request.
func (s *TicketService) Create(ctx context.Context, actor *auth.Principal, title, description string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   actor.UserID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(events.TicketCreatedData{
		TicketID:    ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		CreatedBy:   ticket.CreatedBy,
	})
	if err := s.bus.Publish(ctx, events.Event{
		Name: events.EventTicketCreated,
		Data: payload,
	}, events.DeliveryRequired); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return ticket, nil
}

// List returns tickets visible to the actor, newest-first. Elevated roles
// see every ticket with the assignee resolved; plain users see only their
// own. Out-of-range pagination values are clamped, never rejected.
func (s *TicketService) List(ctx context.Context, actor *auth.Principal, page, limit int) (*TicketPage, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	filter := repository.TicketFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if actor.Role.Elevated() {
		filter.ResolveAssignee = true
	} else {
		creator := actor.UserID
		filter.CreatedBy = &creator
	}

	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TicketPage{
		Page:    page,
		Limit:   limit,
		Count:   len(tickets),
		Tickets: tickets,
	}, nil
}

// Get fetches one ticket under the actor's visibility: elevated roles fetch
// any ticket by id, plain users only their own with a reduced projection.
func (s *TicketService) Get(ctx context.Context, actor *auth.Principal, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewValidationError("invalid ticket id", nil)
	}

	var (
		ticket *domain.Ticket
		err    error
	)
	if actor.Role.Elevated() {
		ticket, err = s.tickets.GetByID(ctx, ticketID)
	} else {
		ticket, err = s.tickets.GetByIDForCreator(ctx, ticketID, actor.UserID)
	}
	if err == pgx.ErrNoRows {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}
