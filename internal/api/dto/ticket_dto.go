package dto

import (
	"time"

	"github.com/spec-kit/tms/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TicketResponse is the full ticket shape shown to elevated roles and to
// creators in listings.
type TicketResponse struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Status        domain.TicketStatus `json:"status"`
	CreatedBy     string              `json:"created_by"`
	AssignedTo    *string             `json:"assigned_to"`
	AssigneeEmail *string             `json:"assignee_email,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// TicketSummaryResponse is the reduced projection a plain user sees when
// fetching a single ticket.
type TicketSummaryResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TicketStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
	Count   int              `json:"count"`
	Tickets []TicketResponse `json:"tickets"`
}

// NewTicketResponse maps the domain model onto the full response shape.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:            ticket.ID,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Status:        ticket.Status,
		CreatedBy:     ticket.CreatedBy,
		AssignedTo:    ticket.AssignedTo,
		AssigneeEmail: ticket.AssigneeEmail,
		CreatedAt:     ticket.CreatedAt,
	}
}

// NewTicketSummaryResponse maps onto the reduced projection.
func NewTicketSummaryResponse(ticket *domain.Ticket) TicketSummaryResponse {
	return TicketSummaryResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		CreatedAt:   ticket.CreatedAt,
	}
}
