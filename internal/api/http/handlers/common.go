package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/facilityops/facility-service/internal/api/dto"
	"github.com/facilityops/facility-service/internal/auth"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/service"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseInt(value string, fallback int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                  t.ID,
		DisplayCode:         t.DisplayCode,
		Title:               t.Title,
		Description:         t.Description,
		Category:            t.Category,
		Priority:            t.Priority,
		Status:              t.Status,
		StatusReason:        t.StatusReason,
		PropertyID:          t.PropertyID,
		OrganizationID:      t.OrganizationID,
		CreatorID:           t.CreatorID,
		AssigneeID:          t.AssigneeID,
		RaisedByRole:        t.RaisedByRole,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
		WorkStartedAt:       t.WorkStartedAt,
		ResolvedAt:          t.ResolvedAt,
		SLAPaused:           t.SLAPaused,
		AccumulatedPauseSec: t.SLAAccumulatedPauseSeconds,
	}
}

func ticketDetail(view *service.TicketView) dto.TicketDetailResponse {
	targets := view.Targets
	if targets == nil {
		targets = []domain.TicketStatus{}
	}
	return dto.TicketDetailResponse{
		TicketResponse: ticketResponse(view.Ticket),
		SLA: dto.SLAResponse{
			ThresholdSeconds:   int64(view.SLA.Threshold.Seconds()),
			ServiceTimeSeconds: int64(view.SLA.ServiceTime.Seconds()),
			RemainingSeconds:   int64(view.SLA.Remaining.Seconds()),
			Breached:           view.SLA.Breached,
			Paused:             view.SLA.Paused,
		},
		AllowedTransitions: targets,
	}
}

func historyResponse(h domain.TicketHistory) dto.HistoryResponse {
	return dto.HistoryResponse{
		ID:          h.ID,
		TicketID:    h.TicketID,
		PropertyID:  h.PropertyID,
		ChangedBy:   h.ChangedBy,
		ChangedRole: h.ChangedRole,
		ChangeType:  h.ChangeType,
		OldValue:    h.OldValue,
		NewValue:    h.NewValue,
		CreatedAt:   h.CreatedAt,
	}
}

func candidateResponse(s service.Suggestion) dto.CandidateResponse {
	resp := dto.CandidateResponse{
		StaffID:     s.Staff.ID,
		Name:        s.Staff.Name,
		Role:        string(s.Staff.Role),
		Skills:      s.Staff.Skills,
		CheckedIn:   s.CheckedIn,
		ActiveLoad:  s.ActiveLoad,
		Recommended: s.Recommended,
	}
	if resp.Skills == nil {
		resp.Skills = []string{}
	}
	if s.CheckedIn {
		at := s.CheckedInAt
		resp.CheckedInAt = &at
	}
	return resp
}

func notificationResponse(n domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		TicketID:  n.TicketID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
	}
}

func shiftResponse(result *service.ShiftToggleResult, propertyID string) dto.ShiftResponse {
	resp := dto.ShiftResponse{
		IsCheckedIn: result.IsCheckedIn,
		Message:     result.Message,
		PropertyID:  propertyID,
	}
	if result.Record != nil {
		at := result.Record.CheckedInAt
		resp.CheckedInAt = &at
		resp.CheckedOutAt = result.Record.CheckedOutAt
	}
	return resp
}
