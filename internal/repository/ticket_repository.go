package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/tms/internal/domain"
)

// TicketFilter captures listing parameters. A nil CreatedBy lists across all
// creators (elevated roles only).
type TicketFilter struct {
	CreatedBy       *string
	ResolveAssignee bool
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByIDForCreator(ctx context.Context, id, creatorID string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, created_by, assigned_to)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.CreatedBy,
		ticket.AssignedTo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// GetByID fetches any ticket with the assignee's email resolved.
func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT t.id, t.title, t.description, t.status, t.created_by, t.assigned_to,
               u.email, t.created_at, t.updated_at
        FROM tickets t
        LEFT JOIN users u ON u.id = t.assigned_to
        WHERE t.id=$1`

	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.AssigneeEmail,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetByIDForCreator fetches a ticket only when owned by creatorID, with the
// reduced projection plain users are allowed to see.
func (r *ticketRepository) GetByIDForCreator(ctx context.Context, id, creatorID string) (*domain.Ticket, error) {
	const query = `
        SELECT id, title, description, status, created_at
        FROM tickets WHERE id=$1 AND created_by=$2`

	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, id, creatorID).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.CreatedAt,
	); err != nil {
		return nil, err
	}
	ticket.CreatedBy = creatorID
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	conditions := make([]string, 0, 1)
	args := make([]any, 0, 3)
	idx := 1

	if filter.CreatedBy != nil {
		conditions = append(conditions, fmt.Sprintf("t.created_by=$%d", idx))
		args = append(args, *filter.CreatedBy)
		idx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	join := ""
	assigneeCol := "NULL"
	if filter.ResolveAssignee {
		join = "LEFT JOIN users u ON u.id = t.assigned_to"
		assigneeCol = "u.email"
	}

	query := fmt.Sprintf(`
        SELECT t.id, t.title, t.description, t.status, t.created_by, t.assigned_to,
               %s, t.created_at, t.updated_at
        FROM tickets t
        %s
        %s
        ORDER BY t.created_at DESC
        LIMIT $%d OFFSET $%d`, assigneeCol, join, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0)
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.AssigneeEmail,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}
