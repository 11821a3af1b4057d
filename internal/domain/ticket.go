package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Ticket is the aggregate for support requests. CreatedBy is immutable
// after creation.
type Ticket struct {
	ID            string
	Title         string
	Description   string
	Status        TicketStatus
	CreatedBy     string
	AssignedTo    *string
	AssigneeEmail *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
