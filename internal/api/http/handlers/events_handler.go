package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tms/internal/events"
	apperrors "github.com/spec-kit/tms/pkg/util"
)

// EventsHandler is the single event-webhook mount: it accepts an event
// envelope and publishes it on the bus for the registered workflows.
type EventsHandler struct {
	bus *events.Dispatcher
}

// NewEventsHandler constructs handler.
func NewEventsHandler(bus *events.Dispatcher) *EventsHandler {
	return &EventsHandler{bus: bus}
}

type eventEnvelope struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Inject handles POST /api/events.
func (h *EventsHandler) Inject(c *fiber.Ctx) error {
	var req eventEnvelope
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || len(req.Data) == 0 {
		return apperrors.NewValidationError("name and data are required", nil)
	}

	if err := h.bus.Publish(c.UserContext(), events.Event{
		Name: events.Name(req.Name),
		Data: req.Data,
	}, events.DeliveryRequired); err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{"message": "event accepted"})
}
