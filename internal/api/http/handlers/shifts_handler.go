package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/facilityops/facility-service/internal/api/dto"
	"github.com/facilityops/facility-service/internal/service"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// ShiftsHandler serves shift check-in endpoints.
type ShiftsHandler struct {
	shifts *service.ShiftService
}

// NewShiftsHandler constructs handler.
func NewShiftsHandler(shifts *service.ShiftService) *ShiftsHandler {
	return &ShiftsHandler{shifts: shifts}
}

// Toggle POST /shifts.
func (h *ShiftsHandler) Toggle(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ShiftToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.shifts.Toggle(c.UserContext(), actor, service.ShiftToggleInput{
		PropertyID: req.PropertyID,
		Action:     req.Action,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": shiftResponse(result, req.PropertyID)})
}

// Status GET /shifts/status?property_id=.
func (h *ShiftsHandler) Status(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	propertyID := c.Query("property_id")
	result, err := h.shifts.Status(c.UserContext(), actor, propertyID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": shiftResponse(result, propertyID)})
}
