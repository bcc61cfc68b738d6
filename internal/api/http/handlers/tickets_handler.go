package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/facilityops/facility-service/internal/api/dto"
	"github.com/facilityops/facility-service/internal/service"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// TicketsHandler serves ticket endpoints for every role.
type TicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignments *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignments: assignments}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Create(c.UserContext(), actor, service.TicketCreateInput{
		PropertyID:  req.PropertyID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	view, err := h.tickets.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// Update PATCH /tickets/:id. A body carrying only assignee_id is a dispatch.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == nil && req.AssigneeID == nil && req.Title == nil && req.Description == nil {
		return apperrors.NewValidationError("nothing to update", map[string]any{
			"fields": "one of status, assignee_id, title, description required",
		})
	}

	id := c.Params("id")
	if req.AssigneeID != nil && req.Status == nil && req.Title == nil && req.Description == nil {
		ticket, err := h.assignments.Assign(c.UserContext(), actor, id, strings.TrimSpace(*req.AssigneeID))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
	}

	ticket, err := h.tickets.Mutate(c.UserContext(), actor, id, service.TicketMutation{
		Status:      req.Status,
		AssigneeID:  req.AssigneeID,
		Reason:      req.Reason,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Claim POST /tickets/:id/claim.
func (h *TicketsHandler) Claim(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.assignments.Claim(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Delete DELETE /tickets/:id?hard=true.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	hard := strings.EqualFold(c.Query("hard"), "true")
	if err := h.tickets.Delete(c.UserContext(), actor, c.Params("id"), hard); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Candidates GET /tickets/:id/candidates.
func (h *TicketsHandler) Candidates(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	suggestions, err := h.assignments.Suggest(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CandidateResponse, 0, len(suggestions))
	for _, s := range suggestions {
		items = append(items, candidateResponse(s))
	}
	return c.JSON(fiber.Map{"data": items})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyResponse(e))
	}
	return c.JSON(fiber.Map{"data": items})
}
