package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/lifecycle"
	"github.com/facilityops/facility-service/internal/repository"
	"github.com/facilityops/facility-service/internal/sla"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

const maxTitleLength = 200

// TicketService coordinates ticket workflows.
type TicketService struct {
	writer      *ticketWriter
	history     repository.TicketHistoryRepository
	assignments *AssignmentService
	policy      sla.Policy
	autoAssign  bool
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	HistoryRepo  repository.TicketHistoryRepository
	Dispatcher   events.Dispatcher
	Cache        CacheInvalidator
	Assignments  *AssignmentService
	Policy       sla.Policy
	AutoAssign   bool
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	PropertyID  string
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// TicketMutation describes a partial update. Nil fields are left alone.
type TicketMutation struct {
	Status      *domain.TicketStatus
	AssigneeID  *string
	Reason      string
	Title       *string
	Description *string
}

// SLAStatus summarizes a ticket's service-time accounting.
type SLAStatus struct {
	Threshold   time.Duration
	ServiceTime time.Duration
	Remaining   time.Duration
	Breached    bool
	Paused      bool
}

// TicketView is a ticket with derived read-side data.
type TicketView struct {
	Ticket  *domain.Ticket
	SLA     SLAStatus
	Targets []domain.TicketStatus
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		writer: &ticketWriter{
			tickets:    deps.TicketRepo,
			history:    deps.HistoryRepo,
			dispatcher: deps.Dispatcher,
			cache:      deps.Cache,
			logger:     logger,
			timeout:    deps.StoreTimeout,
			now:        clockOrDefault(deps.Now),
		},
		history:     deps.HistoryRepo,
		assignments: deps.Assignments,
		policy:      deps.Policy,
		autoAssign:  deps.AutoAssign,
	}
}

// Create validates input, runs dispatch and inserts the ticket in its initial status.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if !actor.Can(domain.CapRaiseTicket) {
		return nil, apperrors.NewPermissionDenied("role cannot raise tickets")
	}
	ticket, err := s.newTicket(actor, input)
	if err != nil {
		return nil, err
	}

	best, found, err := s.assignments.bestCandidate(ctx, ticket)
	if err != nil {
		return nil, err
	}
	ticket.Status = lifecycle.InitialStatus(found, s.autoAssign)
	if ticket.Status == domain.TicketStatusAssigned {
		assignee := best.Staff.ID
		ticket.AssigneeID = &assignee
	}
	if err := ticket.CheckInvariants(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	insertCtx, cancel := withStoreTimeout(ctx, s.writer.timeout)
	err = s.writer.tickets.Create(insertCtx, ticket)
	cancel()
	if err != nil {
		return nil, storeError(err, "ticket", nil)
	}

	s.writer.record(ctx, actor, ticket, domain.ChangeTypeCreated, nil, map[string]any{
		"status":   ticket.Status,
		"priority": ticket.Priority,
		"category": ticket.Category,
	})
	s.writer.invalidate(ticket.PropertyID)
	s.writer.publish(ctx, events.Event{
		Type:       events.EventTicketCreated,
		TicketID:   ticket.ID,
		PropertyID: ticket.PropertyID,
		Actor:      events.ActorOf(actor),
		Ticket:     ticket.Clone(),
		Payload:    events.StatusChangedPayload{NewStatus: ticket.Status},
	})

	if ticket.AssigneeID != nil {
		system := domain.SystemActor()
		s.writer.record(ctx, system, ticket, domain.ChangeTypeAssignee, nil, map[string]any{
			"assignee_id": ticket.AssigneeID,
			"automatic":   true,
		})
		s.writer.publish(ctx, events.Event{
			Type:       events.EventTicketAssigned,
			TicketID:   ticket.ID,
			PropertyID: ticket.PropertyID,
			Actor:      events.ActorOf(system),
			Ticket:     ticket.Clone(),
			Payload:    events.AssignedPayload{AssigneeID: *ticket.AssigneeID, Automatic: true},
		})
	}
	return ticket, nil
}

func (s *TicketService) newTicket(actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	category := strings.ToLower(strings.TrimSpace(input.Category))
	propertyID := strings.TrimSpace(input.PropertyID)
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	fields := map[string]any{}
	if title == "" {
		fields["title"] = "required"
	} else if len(title) > maxTitleLength {
		fields["title"] = "too long"
	}
	if category == "" {
		fields["category"] = "required"
	}
	if propertyID == "" {
		fields["property_id"] = "required"
	}
	if !priority.Valid() {
		fields["priority"] = "must be one of low, medium, high, critical"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", fields)
	}
	if !actor.InProperty(propertyID) {
		return nil, apperrors.NewPermissionDenied("not scoped to this property")
	}

	now := s.writer.now()
	return &domain.Ticket{
		ID:             newID(),
		DisplayCode:    generateDisplayCode(),
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Category:       category,
		Priority:       priority,
		PropertyID:     propertyID,
		OrganizationID: actor.OrganizationID,
		CreatorID:      actor.ID,
		RaisedByRole:   actor.Role.Name(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}, nil
}

// Get returns a visible ticket with its SLA status.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, id string) (*TicketView, error) {
	ticket, err := s.writer.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &TicketView{
		Ticket:  ticket,
		SLA:     s.SLAStatus(ticket, s.writer.now()),
		Targets: lifecycle.Targets(ticket.Status),
	}, nil
}

// SLAStatus evaluates the ticket's SLA at now.
func (s *TicketService) SLAStatus(t *domain.Ticket, now time.Time) SLAStatus {
	return SLAStatus{
		Threshold:   s.policy.Threshold(t.Priority, t.Category),
		ServiceTime: sla.ServiceTime(t, now),
		Remaining:   s.policy.Remaining(t, now),
		Breached:    s.policy.Breached(t, now),
		Paused:      t.SLAPaused,
	}
}

// Mutate applies a status change and/or detail edits in a single compare-and-swap.
func (s *TicketService) Mutate(ctx context.Context, actor domain.Actor, id string, in TicketMutation) (*domain.Ticket, error) {
	if in.Status == nil && in.AssigneeID != nil {
		assigned := domain.TicketStatusAssigned
		in.Status = &assigned
	}
	if in.Status == nil && in.Title == nil && in.Description == nil {
		return nil, apperrors.NewValidationError("nothing to change", nil)
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > maxTitleLength {
			return nil, apperrors.NewValidationError("invalid ticket", map[string]any{"title": "must be 1-200 characters"})
		}
		in.Title = &title
	}

	var pin statusPin
	return s.writer.apply(ctx, actor, id, func(ctx context.Context, current *domain.Ticket, now time.Time) (*lifecycle.Plan, error) {
		next := current
		edited := false
		if in.Title != nil || in.Description != nil {
			if err := lifecycle.CheckDetailsEdit(current, actor); err != nil {
				return nil, err
			}
			next = current.Clone()
			if in.Title != nil {
				next.Title = *in.Title
			}
			if in.Description != nil {
				next.Description = strings.TrimSpace(*in.Description)
			}
			edited = next.Title != current.Title || next.Description != current.Description
		}

		if in.Status == nil {
			next.UpdatedAt = now
			next.Version = current.Version + 1
			return &lifecycle.Plan{
				ExpectedStatus:  current.Status,
				ExpectedVersion: current.Version,
				Ticket:          next,
				Events:          []events.EventType{events.EventTicketUpdated},
			}, nil
		}

		req := lifecycle.Request{Actor: actor, To: *in.Status, Reason: in.Reason}
		if req.To == domain.TicketStatusAssigned {
			req.AssigneeID = actor.ID
			if in.AssigneeID != nil {
				req.AssigneeID = strings.TrimSpace(*in.AssigneeID)
			}
			if err := s.assignments.checkAssignee(ctx, current, req.AssigneeID); err != nil {
				return nil, err
			}
			req.OnlyFrom = pin.observe(current.Status)
		}
		plan, err := lifecycle.Transition(next, req, now)
		if err != nil {
			return nil, err
		}
		if edited {
			plan.Events = append(plan.Events, events.EventTicketUpdated)
		}
		return plan, nil
	}, false)
}

// Delete removes a ticket. Soft deletion needs delete_soft, or the creator while
// the ticket is still unclaimed; hard deletion needs delete_hard.
func (s *TicketService) Delete(ctx context.Context, actor domain.Actor, id string, hard bool) error {
	ticket, err := s.writer.loadVisible(ctx, actor, id)
	if err != nil {
		return err
	}
	if hard && !actor.Can(domain.CapDeleteHard) {
		return apperrors.NewPermissionDenied("hard delete requires an organization admin")
	}
	if !hard && !actor.Can(domain.CapDeleteSoft) && !(ticket.CreatorID == actor.ID && ticket.Status.Unassigned()) {
		return apperrors.NewPermissionDenied("only admins can delete claimed tickets")
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.writer.timeout)
	if hard {
		err = s.writer.tickets.HardDelete(storeCtx, id)
	} else {
		err = s.writer.tickets.SoftDelete(storeCtx, id, s.writer.now())
	}
	cancel()
	if err != nil {
		return storeError(err, "ticket", map[string]any{"ticket_id": id})
	}

	s.writer.record(ctx, actor, ticket, domain.ChangeTypeDeleted,
		map[string]any{"status": ticket.Status},
		map[string]any{"hard": hard})
	s.writer.invalidate(ticket.PropertyID)
	s.writer.publish(ctx, events.Event{
		Type:       events.EventTicketDeleted,
		TicketID:   ticket.ID,
		PropertyID: ticket.PropertyID,
		Actor:      events.ActorOf(actor),
		Ticket:     ticket,
	})
	return nil
}

// History lists the audit trail of a visible ticket, oldest first.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, id string) ([]domain.TicketHistory, error) {
	if _, err := s.writer.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	ctx, cancel := withStoreTimeout(ctx, s.writer.timeout)
	defer cancel()
	entries, err := s.history.ListByTicket(ctx, id)
	if err != nil {
		return nil, storeError(err, "ticket history", map[string]any{"ticket_id": id})
	}
	return entries, nil
}

// AutoClose closes a resolved ticket on behalf of the system once its grace
// period has lapsed.
func (s *TicketService) AutoClose(ctx context.Context, id string) (*domain.Ticket, error) {
	system := domain.SystemActor()
	return s.writer.apply(ctx, system, id, func(_ context.Context, current *domain.Ticket, now time.Time) (*lifecycle.Plan, error) {
		return lifecycle.Transition(current, lifecycle.Request{
			Actor:  system,
			To:     domain.TicketStatusClosed,
			Reason: "grace period elapsed",
		}, now)
	}, true)
}
