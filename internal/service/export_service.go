package service

import (
	"context"
	"strings"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

const maxExportWindow = 93 * 24 * time.Hour

// ExportService serves audit history exports for administrators.
type ExportService struct {
	history repository.TicketHistoryRepository
	timeout time.Duration
}

// ExportInput bounds an export. From is inclusive, To exclusive.
type ExportInput struct {
	PropertyID string
	From       time.Time
	To         time.Time
}

// NewExportService constructs the service.
func NewExportService(history repository.TicketHistoryRepository, storeTimeout time.Duration) *ExportService {
	return &ExportService{history: history, timeout: storeTimeout}
}

// History returns history rows of the caller's properties inside the window.
func (s *ExportService) History(ctx context.Context, actor domain.Actor, in ExportInput) ([]domain.TicketHistory, error) {
	if !actor.Can(domain.CapAdminOverride) {
		return nil, apperrors.NewPermissionDenied("exports require an administrator")
	}
	fields := map[string]any{}
	if in.From.IsZero() {
		fields["from"] = "required"
	}
	if in.To.IsZero() {
		fields["to"] = "required"
	}
	if len(fields) == 0 {
		if !in.To.After(in.From) {
			fields["to"] = "must be after from"
		} else if in.To.Sub(in.From) > maxExportWindow {
			fields["to"] = "window too large"
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid export window", fields)
	}

	properties := actor.PropertyIDs
	if propertyID := strings.TrimSpace(in.PropertyID); propertyID != "" {
		if !actor.InProperty(propertyID) {
			return nil, apperrors.NewPermissionDenied("not scoped to this property")
		}
		properties = []string{propertyID}
	}
	if len(properties) == 0 {
		return nil, apperrors.NewValidationError("property required", map[string]any{"property_id": "required"})
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.history.ListRange(ctx, repository.HistoryRange{PropertyIDs: properties, From: in.From, To: in.To})
	if err != nil {
		return nil, storeError(err, "ticket history", nil)
	}
	return rows, nil
}
