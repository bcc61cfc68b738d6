package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/facilityops/facility-service/internal/api/dto"
	"github.com/facilityops/facility-service/internal/dashboard"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// DashboardHandler serves role-scoped ticket boards.
type DashboardHandler struct {
	boards *dashboard.Service
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(boards *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{boards: boards}
}

// Board GET /dashboard?tab=&status=&priority=&property_id=&page=.
func (h *DashboardHandler) Board(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return apperrors.NewValidationError("invalid query string", nil)
	}
	view, err := dashboard.ParseViewState(query)
	if err != nil {
		return err
	}
	board, err := h.boards.Board(c.UserContext(), actor, view)
	if err != nil {
		return err
	}

	resp := dto.BoardResponse{
		View:        board.View.Encode(),
		Rows:        make([]dto.BoardRow, 0, len(board.Rows)),
		Counts:      board.Counts,
		Total:       board.Total,
		Breached:    board.Breached,
		Stale:       board.Stale,
		GeneratedAt: board.GeneratedAt,
	}
	if board.HasNext {
		resp.NextView = board.View.WithPage(board.View.Page + 1).Encode()
	}
	for i := range board.Rows {
		row := board.Rows[i]
		resp.Rows = append(resp.Rows, dto.BoardRow{
			TicketResponse:   ticketResponse(&row.Ticket),
			Breached:         row.Breached,
			RemainingSeconds: int64(row.Remaining.Seconds()),
		})
	}
	if board.Stale {
		c.Set("Warning", `110 - "response is stale"`)
	}
	return c.JSON(fiber.Map{"data": resp})
}
