package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/repository"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// ShiftService records check-in and check-out per user and property.
type ShiftService struct {
	shifts     repository.ShiftRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

// ShiftDependencies bundles collaborators for the shift service.
type ShiftDependencies struct {
	ShiftRepo    repository.ShiftRepository
	Dispatcher   events.Dispatcher
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

// ShiftToggleInput is a check-in or check-out request.
type ShiftToggleInput struct {
	PropertyID string
	Action     domain.ShiftAction
}

// ShiftToggleResult reports the caller's state after a toggle.
type ShiftToggleResult struct {
	IsCheckedIn bool
	Message     string
	Record      *domain.ShiftRecord
}

// NewShiftService constructs the service.
func NewShiftService(deps ShiftDependencies) *ShiftService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShiftService{
		shifts:     deps.ShiftRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		timeout:    deps.StoreTimeout,
		now:        clockOrDefault(deps.Now),
	}
}

// Toggle dispatches on the requested action.
func (s *ShiftService) Toggle(ctx context.Context, actor domain.Actor, input ShiftToggleInput) (*ShiftToggleResult, error) {
	switch input.Action {
	case domain.ShiftCheckIn:
		return s.CheckIn(ctx, actor, input.PropertyID)
	case domain.ShiftCheckOut:
		return s.CheckOut(ctx, actor, input.PropertyID)
	default:
		return nil, apperrors.NewValidationError("invalid shift action", map[string]any{
			"action": "must be check-in or check-out",
		})
	}
}

// CheckIn opens a shift. A second check-in without check-out is rejected.
func (s *ShiftService) CheckIn(ctx context.Context, actor domain.Actor, propertyID string) (*ShiftToggleResult, error) {
	propertyID, err := s.authorize(actor, propertyID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	record := &domain.ShiftRecord{
		ID:          newID(),
		UserID:      actor.ID,
		PropertyID:  propertyID,
		CheckedIn:   true,
		CheckedInAt: now,
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	err = s.shifts.Open(storeCtx, record)
	cancel()
	if errors.Is(err, repository.ErrShiftAlreadyOpen) {
		return nil, apperrors.NewAlreadyCheckedIn(propertyID)
	}
	if err != nil {
		return nil, storeError(err, "shift", nil)
	}

	s.logger.Info("shift opened", zap.String("user_id", actor.ID), zap.String("property_id", propertyID))
	s.publish(ctx, actor, events.EventShiftCheckedIn, propertyID, now)
	return &ShiftToggleResult{IsCheckedIn: true, Message: "checked in", Record: record}, nil
}

// CheckOut closes the caller's open shift.
func (s *ShiftService) CheckOut(ctx context.Context, actor domain.Actor, propertyID string) (*ShiftToggleResult, error) {
	propertyID, err := s.authorize(actor, propertyID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	record, err := s.shifts.CloseOpen(storeCtx, actor.ID, propertyID, now)
	cancel()
	if errors.Is(err, repository.ErrNoOpenShift) {
		return nil, apperrors.NewNotCheckedIn(propertyID)
	}
	if err != nil {
		return nil, storeError(err, "shift", nil)
	}

	s.logger.Info("shift closed", zap.String("user_id", actor.ID), zap.String("property_id", propertyID))
	s.publish(ctx, actor, events.EventShiftCheckedOut, propertyID, now)
	return &ShiftToggleResult{IsCheckedIn: false, Message: "checked out", Record: record}, nil
}

// Status returns the caller's open shift at the property, if any.
func (s *ShiftService) Status(ctx context.Context, actor domain.Actor, propertyID string) (*ShiftToggleResult, error) {
	propertyID, err := s.authorize(actor, propertyID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	record, err := s.shifts.GetOpen(ctx, actor.ID, propertyID)
	if errors.Is(err, repository.ErrNotFound) {
		return &ShiftToggleResult{Message: "not checked in"}, nil
	}
	if err != nil {
		return nil, storeError(err, "shift", nil)
	}
	return &ShiftToggleResult{IsCheckedIn: true, Message: "checked in", Record: record}, nil
}

func (s *ShiftService) authorize(actor domain.Actor, propertyID string) (string, error) {
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return "", apperrors.NewValidationError("property required", map[string]any{"property_id": "required"})
	}
	if !actor.Can(domain.CapCheckIn) {
		return "", apperrors.NewPermissionDenied("role does not work shifts")
	}
	if !actor.InProperty(propertyID) {
		return "", apperrors.NewPermissionDenied("not scoped to this property")
	}
	return propertyID, nil
}

func (s *ShiftService) publish(ctx context.Context, actor domain.Actor, eventType events.EventType, propertyID string, at time.Time) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:         newID(),
		Type:       eventType,
		PropertyID: propertyID,
		Actor:      events.ActorOf(actor),
		Timestamp:  at,
		Payload:    events.ShiftPayload{UserID: actor.ID, PropertyID: propertyID, At: at},
	})
}
