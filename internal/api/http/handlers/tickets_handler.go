package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tms/internal/api/dto"
	"github.com/spec-kit/tms/internal/auth"
	"github.com/spec-kit/tms/internal/service"
	apperrors "github.com/spec-kit/tms/pkg/util"
)

// TicketsHandler manages the /api/ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create handles POST /api/ticket/.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Create(c.UserContext(), principal, req.Title, req.Description)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "ticket created successfully",
		"ticket":  dto.NewTicketResponse(ticket),
	})
}

// List handles GET /api/ticket/.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	result, err := h.service.List(c.UserContext(), principal, page, limit)
	if err != nil {
		return err
	}

	tickets := make([]dto.TicketResponse, 0, len(result.Tickets))
	for i := range result.Tickets {
		tickets = append(tickets, dto.NewTicketResponse(&result.Tickets[i]))
	}
	return c.JSON(dto.TicketListResponse{
		Page:    result.Page,
		Limit:   result.Limit,
		Count:   result.Count,
		Tickets: tickets,
	})
}

// Get handles GET /api/ticket/:id. Plain users get the reduced projection,
// elevated roles the full shape with the assignee resolved.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	ticket, err := h.service.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}

	if principal.Role.Elevated() {
		return c.JSON(fiber.Map{"ticket": dto.NewTicketResponse(ticket)})
	}
	return c.JSON(fiber.Map{"ticket": dto.NewTicketSummaryResponse(ticket)})
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
