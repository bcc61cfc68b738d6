package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/facilityops/facility-service/internal/api/dto"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/service"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

var historyCSVHeader = []string{
	"id", "ticket_id", "property_id", "changed_by", "changed_role", "change_type", "old_value", "new_value", "created_at",
}

// ExportsHandler serves audit exports.
type ExportsHandler struct {
	exports *service.ExportService
}

// NewExportsHandler constructs handler.
func NewExportsHandler(exports *service.ExportService) *ExportsHandler {
	return &ExportsHandler{exports: exports}
}

// History GET /exports/history?from=&to=&property_id=&format=json|csv. Times are RFC 3339.
func (h *ExportsHandler) History(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	format := strings.ToLower(c.Query("format", "json"))
	if format != "json" && format != "csv" {
		return apperrors.NewValidationError("invalid export format", map[string]any{"format": "must be json or csv"})
	}
	from, fromErr := parseTime(c.Query("from"))
	to, toErr := parseTime(c.Query("to"))
	if fromErr != nil || toErr != nil {
		fields := map[string]any{}
		if fromErr != nil {
			fields["from"] = "must be an RFC 3339 timestamp"
		}
		if toErr != nil {
			fields["to"] = "must be an RFC 3339 timestamp"
		}
		return apperrors.NewValidationError("invalid export window", fields)
	}

	rows, err := h.exports.History(c.UserContext(), actor, service.ExportInput{
		PropertyID: c.Query("property_id"),
		From:       from,
		To:         to,
	})
	if err != nil {
		return err
	}

	if format == "json" {
		items := make([]dto.HistoryResponse, 0, len(rows))
		for _, r := range rows {
			items = append(items, historyResponse(r))
		}
		return c.JSON(fiber.Map{"data": items})
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="ticket-history.csv"`)
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Response().BodyWriter())
	if err := w.Write(historyCSVHeader); err != nil {
		return apperrors.NewInternalError(err)
	}
	for _, r := range rows {
		if err := w.Write(historyRecord(r)); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func historyRecord(h domain.TicketHistory) []string {
	return []string{
		h.ID,
		h.TicketID,
		h.PropertyID,
		h.ChangedBy,
		string(h.ChangedRole),
		string(h.ChangeType),
		jsonCell(h.OldValue),
		jsonCell(h.NewValue),
		h.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func jsonCell(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
