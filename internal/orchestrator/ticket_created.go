package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/tms/internal/events"
	"github.com/spec-kit/tms/internal/mailer"
	"github.com/spec-kit/tms/internal/repository"
	"github.com/spec-kit/tms/internal/workflow"
)

// TicketCreatedOrchestrator acknowledges new tickets: resolve the creator,
// then mail a received-confirmation. Same terminal/transient split as the
// signup workflow.
type TicketCreatedOrchestrator struct {
	users  repository.UserRepository
	mail   mailer.Mailer
	logger *zap.Logger
}

// NewTicketCreatedOrchestrator builds the orchestrator.
func NewTicketCreatedOrchestrator(users repository.UserRepository, mail mailer.Mailer, logger *zap.Logger) *TicketCreatedOrchestrator {
	return &TicketCreatedOrchestrator{users: users, mail: mail, logger: logger}
}

// Registration binds the workflow to ticket/created with its retry budget.
func (o *TicketCreatedOrchestrator) Registration(retries int) events.Registration {
	return events.Registration{
		Workflow: "on-ticket-created",
		Event:    events.EventTicketCreated,
		Retries:  retries,
		Fn:       o.handle,
	}
}

func (o *TicketCreatedOrchestrator) handle(ctx context.Context, event events.Event, step *workflow.Step) error {
	var data events.TicketCreatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return workflow.NewNonRetriable(fmt.Errorf("malformed payload: %w", err))
	}

	var creator resolvedUser
	err := step.Run(ctx, "resolve-ticket-creator", &creator, func(ctx context.Context) (any, error) {
		found, err := o.users.GetByID(ctx, data.CreatedBy)
		if err == pgx.ErrNoRows {
			return nil, workflow.NewNonRetriable(fmt.Errorf("no user %s", data.CreatedBy))
		}
		if err != nil {
			return nil, err
		}
		return resolvedUser{Name: found.Name, Email: found.Email}, nil
	})
	if err != nil {
		return err
	}

	return step.Run(ctx, "send-ticket-received-email", nil, func(ctx context.Context) (any, error) {
		subject := fmt.Sprintf("Ticket received: %s", data.Title)
		text := fmt.Sprintf("Hi %s, we received your ticket %q and will get back to you.", creator.Name, data.Title)
		html := fmt.Sprintf("<p>Hi %s, we received your ticket <b>%s</b> and will get back to you.</p>", creator.Name, data.Title)

		messageID, err := o.mail.Send(ctx, creator.Email, subject, text, html)
		if err != nil {
			return nil, err
		}
		o.logger.Info("ticket confirmation sent",
			zap.String("to", creator.Email),
			zap.String("ticket_id", data.TicketID),
			zap.String("message_id", messageID))
		return messageID, nil
	})
}
