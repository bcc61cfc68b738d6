package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/facilityops/facility-service/internal/dispatch"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/lifecycle"
	"github.com/facilityops/facility-service/internal/repository"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

const waitlistBatch = 200

var errNoCandidate = errors.New("no eligible resolver")

var claimable = []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusWaitlist}

// AssignmentService handles claim, manual dispatch and waitlist reconciliation.
type AssignmentService struct {
	writer   *ticketWriter
	staff    repository.StaffRepository
	shifts   repository.ShiftRepository
	selector dispatch.Selector
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo   repository.TicketRepository
	StaffRepo    repository.StaffRepository
	ShiftRepo    repository.ShiftRepository
	HistoryRepo  repository.TicketHistoryRepository
	Dispatcher   events.Dispatcher
	Cache        CacheInvalidator
	Selector     dispatch.Selector
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

// Suggestion is a ranked resolver for a ticket. Recommended is false for
// candidates that manual dispatch may pick but auto-dispatch would skip.
type Suggestion struct {
	dispatch.Candidate
	Recommended bool
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		writer: &ticketWriter{
			tickets:    deps.TicketRepo,
			history:    deps.HistoryRepo,
			dispatcher: deps.Dispatcher,
			cache:      deps.Cache,
			logger:     logger.Named("assignment"),
			timeout:    deps.StoreTimeout,
			now:        clockOrDefault(deps.Now),
		},
		staff:    deps.StaffRepo,
		shifts:   deps.ShiftRepo,
		selector: deps.Selector,
	}
}

// RegisterHandlers reconciles the waitlist whenever someone checks in.
func (s *AssignmentService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventShiftCheckedIn, func(ctx context.Context, event events.Event) error {
		_, err := s.ReconcileWaitlist(ctx, event.PropertyID)
		return err
	})
}

// Claim assigns an open or waitlisted ticket to the calling resolver.
func (s *AssignmentService) Claim(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.Can(domain.CapClaim) {
		return nil, apperrors.NewPermissionDenied("role cannot claim tickets")
	}
	return s.assign(ctx, actor, ticketID, actor.ID, claimable)
}

// Assign dispatches a ticket to a chosen resolver, reassigning if needed.
func (s *AssignmentService) Assign(ctx context.Context, actor domain.Actor, ticketID, assigneeID string) (*domain.Ticket, error) {
	if !actor.Can(domain.CapDispatch) {
		return nil, apperrors.NewPermissionDenied("role cannot dispatch tickets")
	}
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID == "" {
		return nil, apperrors.NewValidationError("assignee required", map[string]any{"assignee_id": "required"})
	}
	return s.assign(ctx, actor, ticketID, assigneeID, nil)
}

// assign moves a ticket to assigned. With from unset, the status seen by the
// first attempt is pinned, so a retry never turns into a different transition.
func (s *AssignmentService) assign(ctx context.Context, actor domain.Actor, ticketID, assigneeID string, from []domain.TicketStatus) (*domain.Ticket, error) {
	pin := statusPin{from: from}
	return s.writer.apply(ctx, actor, ticketID, func(ctx context.Context, current *domain.Ticket, now time.Time) (*lifecycle.Plan, error) {
		if err := s.checkAssignee(ctx, current, assigneeID); err != nil {
			return nil, err
		}
		return lifecycle.Transition(current, lifecycle.Request{
			Actor:      actor,
			To:         domain.TicketStatusAssigned,
			AssigneeID: assigneeID,
			OnlyFrom:   pin.observe(current.Status),
		}, now)
	}, false)
}

// Suggest ranks every resolver manual dispatch could pick for the ticket.
func (s *AssignmentService) Suggest(ctx context.Context, actor domain.Actor, ticketID string) ([]Suggestion, error) {
	if !actor.Can(domain.CapDispatch) {
		return nil, apperrors.NewPermissionDenied("role cannot dispatch tickets")
	}
	ticket, err := s.writer.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.candidates(ctx, ticket)
	if err != nil {
		return nil, err
	}
	ranked := s.selector.Relaxed().Rank(ticket, candidates)
	out := make([]Suggestion, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, Suggestion{Candidate: c, Recommended: s.selector.Eligible(ticket, c)})
	}
	return out, nil
}

// ReconcileWaitlist assigns waitlisted tickets of a property, oldest first, to
// whoever is now eligible. Tickets nobody can take stay waitlisted.
func (s *AssignmentService) ReconcileWaitlist(ctx context.Context, propertyID string) (int, error) {
	listCtx, cancel := withStoreTimeout(ctx, s.writer.timeout)
	waiting, err := s.writer.tickets.List(listCtx, repository.TicketFilter{
		PropertyIDs: []string{propertyID},
		Statuses:    []domain.TicketStatus{domain.TicketStatusWaitlist},
		OldestFirst: true,
		Limit:       waitlistBatch,
	})
	cancel()
	if err != nil {
		return 0, storeError(err, "ticket", map[string]any{"property_id": propertyID})
	}

	system := domain.SystemActor()
	assigned := 0
	for _, ticket := range waiting {
		if err := ctx.Err(); err != nil {
			return assigned, err
		}
		_, err := s.writer.apply(ctx, system, ticket.ID, func(ctx context.Context, current *domain.Ticket, now time.Time) (*lifecycle.Plan, error) {
			best, ok, err := s.bestCandidate(ctx, current)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errNoCandidate
			}
			return lifecycle.Transition(current, lifecycle.Request{
				Actor:      system,
				To:         domain.TicketStatusAssigned,
				AssigneeID: best.Staff.ID,
				OnlyFrom:   []domain.TicketStatus{domain.TicketStatusWaitlist},
			}, now)
		}, true)
		switch {
		case err == nil:
			assigned++
		case errors.Is(err, errNoCandidate),
			apperrors.HasCode(err, apperrors.CodeConcurrentModification),
			apperrors.HasCode(err, apperrors.CodeTransitionDenied),
			apperrors.HasCode(err, apperrors.CodeNotFound):
			continue
		default:
			return assigned, err
		}
	}
	if assigned > 0 {
		s.writer.logger.Info("waitlist reconciled",
			zap.String("property_id", propertyID),
			zap.Int("assigned", assigned),
			zap.Int("waiting", len(waiting)))
	}
	return assigned, nil
}

// bestCandidate applies the strict selector used for automatic dispatch.
func (s *AssignmentService) bestCandidate(ctx context.Context, ticket *domain.Ticket) (dispatch.Candidate, bool, error) {
	candidates, err := s.candidates(ctx, ticket)
	if err != nil {
		return dispatch.Candidate{}, false, err
	}
	best, ok := s.selector.Pick(ticket, candidates)
	return best, ok, nil
}

// checkAssignee validates a manual assignment with the relaxed selector.
func (s *AssignmentService) checkAssignee(ctx context.Context, ticket *domain.Ticket, assigneeID string) error {
	ctx, cancel := withStoreTimeout(ctx, s.writer.timeout)
	defer cancel()

	member, err := s.staff.GetByID(ctx, assigneeID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewValidationError("unknown resolver", map[string]any{"assignee_id": assigneeID})
	}
	if err != nil {
		return storeError(err, "staff", map[string]any{"staff_id": assigneeID})
	}
	candidate := dispatch.Candidate{Staff: *member}
	shift, err := s.shifts.GetOpen(ctx, assigneeID, ticket.PropertyID)
	switch {
	case err == nil:
		candidate.CheckedIn = true
		candidate.CheckedInAt = shift.CheckedInAt
	case !errors.Is(err, repository.ErrNotFound):
		return storeError(err, "shift", nil)
	}
	if reason := s.selector.Relaxed().Ineligibility(ticket, candidate); reason != "" {
		return apperrors.NewValidationError("resolver cannot take this ticket", map[string]any{
			"assignee_id": assigneeID,
			"reason":      reason,
		})
	}
	return nil
}

// candidates joins staff, open shifts and active load for the ticket's property.
func (s *AssignmentService) candidates(ctx context.Context, ticket *domain.Ticket) ([]dispatch.Candidate, error) {
	ctx, cancel := withStoreTimeout(ctx, s.writer.timeout)
	defer cancel()

	active := true
	propertyID := ticket.PropertyID
	var (
		members []domain.StaffMember
		open    []domain.ShiftRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = s.staff.List(gctx, repository.StaffFilter{
			OrganizationID: ticket.OrganizationID,
			PropertyID:     &propertyID,
			Active:         &active,
		})
		if err != nil {
			return storeError(err, "staff", nil)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		open, err = s.shifts.ListOpen(gctx, propertyID)
		if err != nil {
			return storeError(err, "shift", nil)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	onShift := make(map[string]time.Time, len(open))
	for _, record := range open {
		onShift[record.UserID] = record.CheckedInAt
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	loads, err := s.writer.tickets.CountActiveByAssignee(ctx, ids)
	if err != nil {
		return nil, storeError(err, "ticket", nil)
	}

	out := make([]dispatch.Candidate, 0, len(members))
	for _, m := range members {
		checkedInAt, checkedIn := onShift[m.ID]
		out = append(out, dispatch.Candidate{
			Staff:       m,
			CheckedIn:   checkedIn,
			CheckedInAt: checkedInAt,
			ActiveLoad:  loads[m.ID],
		})
	}
	return out, nil
}
