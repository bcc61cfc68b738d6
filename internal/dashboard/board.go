package dashboard

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/cache"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
	"github.com/facilityops/facility-service/internal/sla"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

const snapshotLimit = 500

// Row is one ticket on a board.
type Row struct {
	Ticket    domain.Ticket
	Breached  bool
	Remaining time.Duration
}

// Board is a role-scoped page of tickets plus per-status counts.
type Board struct {
	View        ViewState
	Rows        []Row
	Counts      map[domain.TicketStatus]int
	Total       int
	Breached    int
	HasNext     bool
	Stale       bool
	GeneratedAt time.Time
}

// Service reads boards through the shared ticket cache.
type Service struct {
	tickets     repository.TicketRepository
	cache       *cache.Store[[]domain.Ticket]
	policy      sla.Policy
	loadTimeout time.Duration
	pageSize    int
	logger      *zap.Logger
	now         func() time.Time
}

// Dependencies bundles collaborators for the dashboard service.
type Dependencies struct {
	TicketRepo  repository.TicketRepository
	Cache       *cache.Store[[]domain.Ticket]
	Policy      sla.Policy
	LoadTimeout time.Duration
	PageSize    int
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewService constructs the dashboard service.
func NewService(deps Dependencies) *Service {
	s := &Service{
		tickets:     deps.TicketRepo,
		cache:       deps.Cache,
		policy:      deps.Policy,
		loadTimeout: deps.LoadTimeout,
		pageSize:    deps.PageSize,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CacheKey names the cached snapshot of a property's tab.
func CacheKey(propertyID string, tab Tab) string {
	return "tickets-" + propertyID + "-" + string(tab.cacheBucket())
}

// Board returns the caller's view of a property.
func (s *Service) Board(ctx context.Context, actor domain.Actor, view ViewState) (*Board, error) {
	if view.Tab == "" {
		view.Tab = TabActive
	}
	if view.Page < 1 {
		view.Page = 1
	}
	propertyID, err := s.resolveProperty(actor, view.PropertyID)
	if err != nil {
		return nil, err
	}
	view.PropertyID = propertyID

	snapshot, stale, err := s.load(ctx, propertyID, view.Tab)
	if err != nil {
		return nil, err
	}
	if foreignProperty(actor, snapshot) {
		return nil, apperrors.NewPermissionDenied("property belongs to another organization")
	}

	now := s.now()
	board := &Board{
		View:        view,
		Counts:      make(map[domain.TicketStatus]int),
		Stale:       stale,
		GeneratedAt: now,
	}
	var rows []Row
	for _, t := range snapshot {
		if !visible(actor, view, &t) {
			continue
		}
		row := Row{
			Ticket:    t,
			Breached:  s.policy.Breached(&t, now),
			Remaining: s.policy.Remaining(&t, now),
		}
		board.Counts[t.Status]++
		if row.Breached {
			board.Breached++
		}
		rows = append(rows, row)
	}
	sortRows(rows)

	board.Total = len(rows)
	start := (view.Page - 1) * s.pageSize
	if start < len(rows) {
		end := start + s.pageSize
		if end > len(rows) {
			end = len(rows)
		}
		board.Rows = rows[start:end]
		board.HasNext = end < len(rows)
	}
	return board, nil
}

// load reads the shared snapshot of a property. The snapshot is the same for
// every caller; per-actor scoping happens in visible.
func (s *Service) load(ctx context.Context, propertyID string, tab Tab) ([]domain.Ticket, bool, error) {
	if s.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
	}
	bucket := tab.cacheBucket()
	snapshot, stale, err := s.cache.Get(ctx, CacheKey(propertyID, bucket), func(ctx context.Context) ([]domain.Ticket, error) {
		return s.tickets.List(ctx, repository.TicketFilter{
			PropertyIDs: []string{propertyID},
			Statuses:    bucket.Statuses(),
			Limit:       snapshotLimit,
		})
	})
	switch {
	case err == nil:
		return snapshot, stale, nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, cache.ErrClosed):
		s.logger.Warn("dashboard load timed out", zap.String("property_id", propertyID), zap.Error(err))
		return nil, false, apperrors.NewUpstreamUnavailable("dashboard", err)
	default:
		return nil, false, apperrors.NewUpstreamUnavailable("store", err)
	}
}

func (s *Service) resolveProperty(actor domain.Actor, propertyID string) (string, error) {
	if propertyID == "" {
		if len(actor.PropertyIDs) != 1 {
			return "", apperrors.NewValidationError("property required", map[string]any{"property_id": "required"})
		}
		return actor.PropertyIDs[0], nil
	}
	if actor.Role.Name() != domain.RoleTenant && !actor.InProperty(propertyID) {
		return "", apperrors.NewPermissionDenied("not scoped to this property")
	}
	return propertyID, nil
}

// foreignProperty reports whether an organization-wide actor named a property
// whose tickets all belong to another organization.
func foreignProperty(actor domain.Actor, snapshot []domain.Ticket) bool {
	if actor.OrganizationID == "" || len(snapshot) == 0 {
		return false
	}
	for _, t := range snapshot {
		if t.OrganizationID == actor.OrganizationID {
			return false
		}
	}
	return true
}

// visible applies role scoping and the view's filters. Tenants see their own
// tickets; staff see their work plus the unclaimed queue; admins see everything.
func visible(actor domain.Actor, view ViewState, t *domain.Ticket) bool {
	if !actor.CanAccessTicket(t) {
		return false
	}
	if view.Tab == TabMine && !t.IsAssignee(actor.ID) && t.CreatorID != actor.ID {
		return false
	}
	if actor.Role.Name() == domain.RoleStaff && !t.IsAssignee(actor.ID) && !t.Status.Unassigned() && t.CreatorID != actor.ID {
		return false
	}
	if len(view.Statuses) > 0 && !hasStatus(view.Statuses, t.Status) {
		return false
	}
	if view.Priority != "" && t.Priority != view.Priority {
		return false
	}
	return true
}

func hasStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

var priorityRank = map[domain.TicketPriority]int{
	domain.TicketPriorityCritical: 0,
	domain.TicketPriorityHigh:     1,
	domain.TicketPriorityMedium:   2,
	domain.TicketPriorityLow:      3,
}

// sortRows puts breached tickets first, then by priority, then oldest.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Breached != b.Breached {
			return a.Breached
		}
		if pa, pb := priorityRank[a.Ticket.Priority], priorityRank[b.Ticket.Priority]; pa != pb {
			return pa < pb
		}
		if !a.Ticket.CreatedAt.Equal(b.Ticket.CreatedAt) {
			return a.Ticket.CreatedAt.Before(b.Ticket.CreatedAt)
		}
		return a.Ticket.ID < b.Ticket.ID
	})
}
