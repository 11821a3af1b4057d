package events

import (
	"encoding/json"
	"time"
)

// Name identifies an event on the bus.
type Name string

const (
	EventUserSignedUp  Name = "user/signUp"
	EventTicketCreated Name = "ticket/created"
)

// DeliveryPolicy states how a producer call site treats publish failures.
// The source system varied this implicitly per call; here it is explicit.
type DeliveryPolicy int

const (
	// DeliveryBestEffort logs publish failures and continues. Used where the
	// triggering request must not fail for background work (signup).
	DeliveryBestEffort DeliveryPolicy = iota
	// DeliveryRequired propagates publish failures to the producer. Used
	// where losing the event would silently break a promised side effect
	// (ticket creation).
	DeliveryRequired
)

// Event is a named payload delivered at least once to registered workflows.
type Event struct {
	ID        string          `json:"id"`
	Name      Name            `json:"name"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// UserSignedUpData is the payload of user/signUp.
type UserSignedUpData struct {
	Email string `json:"email"`
}

// TicketCreatedData is the payload of ticket/created.
type TicketCreatedData struct {
	TicketID    string `json:"ticketId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
}
