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

// resolvedUser is the checkpointed output of the resolve steps. Only the
// fields the mail steps need are persisted.
type resolvedUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SignupOrchestrator owns the on-user-signup workflow: resolve the user by
// email, then send the welcome mail. A missing user is terminal (a malformed
// or late event that no retry can fix); a transport failure is transient and
// retried with the rest of the run, with the resolve step's checkpoint
// reused instead of recomputed.
type SignupOrchestrator struct {
	users  repository.UserRepository
	mail   mailer.Mailer
	logger *zap.Logger
}

// NewSignupOrchestrator builds the orchestrator.
func NewSignupOrchestrator(users repository.UserRepository, mail mailer.Mailer, logger *zap.Logger) *SignupOrchestrator {
	return &SignupOrchestrator{users: users, mail: mail, logger: logger}
}

// Registration binds the workflow to user/signUp with its retry budget.
func (o *SignupOrchestrator) Registration(retries int) events.Registration {
	return events.Registration{
		Workflow: "on-user-signup",
		Event:    events.EventUserSignedUp,
		Retries:  retries,
		Fn:       o.handle,
	}
}

func (o *SignupOrchestrator) handle(ctx context.Context, event events.Event, step *workflow.Step) error {
	var data events.UserSignedUpData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return workflow.NewNonRetriable(fmt.Errorf("malformed payload: %w", err))
	}

	var user resolvedUser
	err := step.Run(ctx, "resolve-user", &user, func(ctx context.Context) (any, error) {
		found, err := o.users.GetByEmail(ctx, data.Email)
		if err == pgx.ErrNoRows {
			return nil, workflow.NewNonRetriable(fmt.Errorf("no user for %s", data.Email))
		}
		if err != nil {
			return nil, err
		}
		return resolvedUser{Name: found.Name, Email: found.Email}, nil
	})
	if err != nil {
		return err
	}

	return step.Run(ctx, "send-welcome-email", nil, func(ctx context.Context) (any, error) {
		subject := "Welcome to the Ticket Desk"
		text := fmt.Sprintf("Welcome to the Ticket Desk, %s!", user.Name)
		html := fmt.Sprintf("<h1>Welcome to the Ticket Desk, %s!</h1>", user.Name)

		messageID, err := o.mail.Send(ctx, user.Email, subject, text, html)
		if err != nil {
			return nil, err
		}
		o.logger.Info("welcome email sent",
			zap.String("to", user.Email),
			zap.String("message_id", messageID))
		return messageID, nil
	})
}
