// Package lifecycle validates ticket status transitions and computes their effects.
// It holds no state and performs no I/O; callers persist the returned plan with a
// compare-and-swap keyed on Plan.ExpectedStatus and Plan.ExpectedVersion.
package lifecycle

import (
	"strings"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/sla"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// Request asks for a ticket to move to status To.
type Request struct {
	Actor      domain.Actor
	To         domain.TicketStatus
	AssigneeID string
	Reason     string
	// OnlyFrom, when set, restricts the source statuses the request may start from.
	OnlyFrom []domain.TicketStatus
}

// Plan is the validated outcome of a transition.
type Plan struct {
	ExpectedStatus  domain.TicketStatus
	ExpectedVersion int64
	Ticket          *domain.Ticket
	Events          []events.EventType
}

type rule struct {
	name  string
	from  []domain.TicketStatus
	to    domain.TicketStatus
	guard func(t *domain.Ticket, req Request) string
	apply func(t *domain.Ticket, req Request, now time.Time)
}

var rules = []rule{
	{
		name:  "claim",
		from:  []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusWaitlist},
		to:    domain.TicketStatusAssigned,
		guard: guardClaim,
		apply: applyAssign,
	},
	{
		name:  "reassign",
		from:  []domain.TicketStatus{domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusBlocked},
		to:    domain.TicketStatusAssigned,
		guard: guardReassign,
		apply: func(t *domain.Ticket, req Request, now time.Time) {
			applyAssign(t, req, now)
			t.WorkStartedAt = nil
		},
	},
	{
		name: "start",
		from: []domain.TicketStatus{domain.TicketStatusAssigned},
		to:   domain.TicketStatusInProgress,
		guard: func(t *domain.Ticket, req Request) string {
			if !t.IsAssignee(req.Actor.ID) {
				return "only the assignee can start work"
			}
			return ""
		},
		apply: func(t *domain.Ticket, _ Request, now time.Time) {
			if t.WorkStartedAt == nil {
				started := now
				t.WorkStartedAt = &started
			}
		},
	},
	{
		name:  "pause",
		from:  []domain.TicketStatus{domain.TicketStatusInProgress},
		to:    domain.TicketStatusPaused,
		guard: requireReason,
		apply: func(t *domain.Ticket, req Request, now time.Time) {
			sla.Pause(t, now)
			t.StatusReason = strings.TrimSpace(req.Reason)
		},
	},
	{
		name: "resume",
		from: []domain.TicketStatus{domain.TicketStatusPaused},
		to:   domain.TicketStatusInProgress,
		apply: func(t *domain.Ticket, _ Request, now time.Time) {
			sla.Resume(t, now)
			t.StatusReason = ""
		},
	},
	{
		name: "block",
		from: []domain.TicketStatus{
			domain.TicketStatusWaitlist, domain.TicketStatusOpen, domain.TicketStatusAssigned,
			domain.TicketStatusInProgress, domain.TicketStatusPaused, domain.TicketStatusResolved,
		},
		to:    domain.TicketStatusBlocked,
		guard: requireReason,
		apply: func(t *domain.Ticket, req Request, now time.Time) {
			// blocked keeps the SLA clock running
			sla.Resume(t, now)
			t.ResolvedAt = nil
			t.StatusReason = strings.TrimSpace(req.Reason)
		},
	},
	{
		name: "unblock",
		from: []domain.TicketStatus{domain.TicketStatusBlocked},
		to:   domain.TicketStatusInProgress,
		guard: func(t *domain.Ticket, req Request) string {
			if t.AssigneeID == nil {
				return "blocked ticket has no assignee; assign it instead"
			}
			return assigneeOrAdmin(t, req)
		},
		apply: func(t *domain.Ticket, _ Request, _ time.Time) {
			t.StatusReason = ""
		},
	},
	{
		name:  "resolve",
		from:  []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusBlocked},
		to:    domain.TicketStatusResolved,
		guard: assigneeOrAdmin,
		apply: func(t *domain.Ticket, _ Request, now time.Time) {
			resolved := now
			t.ResolvedAt = &resolved
			t.StatusReason = ""
		},
	},
	{
		name: "close",
		from: []domain.TicketStatus{domain.TicketStatusResolved},
		to:   domain.TicketStatusClosed,
		guard: func(_ *domain.Ticket, req Request) string {
			if !req.Actor.Can(domain.CapClose) {
				return "closing requires admin confirmation"
			}
			return ""
		},
	},
	{
		name: "reopen",
		from: []domain.TicketStatus{domain.TicketStatusResolved},
		to:   domain.TicketStatusInProgress,
		guard: func(_ *domain.Ticket, req Request) string {
			if !req.Actor.Can(domain.CapReopen) {
				return "only admins can reopen a resolved ticket"
			}
			return ""
		},
		apply: func(t *domain.Ticket, _ Request, _ time.Time) {
			t.ResolvedAt = nil
		},
	},
}

// Transition validates req against the ticket's current status and returns the
// mutated copy. The input ticket is never modified.
func Transition(t *domain.Ticket, req Request, now time.Time) (*Plan, error) {
	if !req.To.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": req.To})
	}
	from := t.Status
	role := string(req.Actor.Role.Name())
	if from == domain.TicketStatusClosed {
		return nil, apperrors.NewTransitionDenied(string(from), string(req.To), role, "closed tickets are archived and cannot change")
	}
	if len(req.OnlyFrom) > 0 && !hasStatus(req.OnlyFrom, from) {
		return nil, apperrors.NewTransitionDenied(string(from), string(req.To), role, "ticket is no longer "+joinStatuses(req.OnlyFrom))
	}

	r, ok := findRule(from, req.To)
	if !ok {
		return nil, apperrors.NewTransitionDenied(string(from), string(req.To), role, "transition not allowed")
	}
	if r.guard != nil {
		if reason := r.guard(t, req); reason != "" {
			return nil, apperrors.NewTransitionDenied(string(from), string(req.To), role, reason)
		}
	}

	next := t.Clone()
	next.Status = req.To
	if r.apply != nil {
		r.apply(next, req, now)
	}
	next.UpdatedAt = now
	next.Version = t.Version + 1
	if err := next.CheckInvariants(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &Plan{
		ExpectedStatus:  from,
		ExpectedVersion: t.Version,
		Ticket:          next,
		Events:          []events.EventType{eventFor(req.To)},
	}, nil
}

// CanTransition reports whether from → to appears in the transition table, ignoring guards.
func CanTransition(from, to domain.TicketStatus) bool {
	_, ok := findRule(from, to)
	return ok
}

// Targets lists the statuses reachable from `from`, ignoring guards.
func Targets(from domain.TicketStatus) []domain.TicketStatus {
	var out []domain.TicketStatus
	for _, to := range domain.AllStatuses {
		if CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}

// InitialStatus picks the creation status from the dispatch outcome.
func InitialStatus(hasEligibleResolver, autoAssign bool) domain.TicketStatus {
	switch {
	case !hasEligibleResolver:
		return domain.TicketStatusWaitlist
	case autoAssign:
		return domain.TicketStatusAssigned
	default:
		return domain.TicketStatusOpen
	}
}

// CheckDetailsEdit validates a title/description change.
func CheckDetailsEdit(t *domain.Ticket, actor domain.Actor) error {
	if t.Status == domain.TicketStatusClosed {
		return apperrors.NewTransitionDenied(string(t.Status), string(t.Status), string(actor.Role.Name()), "closed tickets are archived and cannot change")
	}
	if t.CreatorID != actor.ID && !actor.Can(domain.CapAdminOverride) {
		return apperrors.NewPermissionDenied("only the creator or an admin can edit ticket details")
	}
	return nil
}

func findRule(from, to domain.TicketStatus) (rule, bool) {
	for _, r := range rules {
		if r.to != to {
			continue
		}
		for _, f := range r.from {
			if f == from {
				return r, true
			}
		}
	}
	return rule{}, false
}

func hasStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func joinStatuses(statuses []domain.TicketStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, " or ")
}

func eventFor(to domain.TicketStatus) events.EventType {
	switch to {
	case domain.TicketStatusAssigned:
		return events.EventTicketAssigned
	case domain.TicketStatusResolved, domain.TicketStatusClosed:
		return events.EventTicketCompleted
	default:
		return events.EventTicketStatusChanged
	}
}

func guardClaim(_ *domain.Ticket, req Request) string {
	if strings.TrimSpace(req.AssigneeID) == "" {
		return "a resolver must be supplied"
	}
	if req.Actor.Can(domain.CapDispatch) {
		return ""
	}
	if req.Actor.ID == req.AssigneeID && req.Actor.Can(domain.CapClaim) {
		return ""
	}
	return "only dispatchers or the claiming resolver can assign"
}

func guardReassign(t *domain.Ticket, req Request) string {
	if strings.TrimSpace(req.AssigneeID) == "" {
		return "a resolver must be supplied"
	}
	if t.IsAssignee(req.AssigneeID) {
		return "ticket is already assigned to this resolver"
	}
	if !req.Actor.Can(domain.CapDispatch) {
		return "only dispatchers can reassign"
	}
	return ""
}

func applyAssign(t *domain.Ticket, req Request, _ time.Time) {
	assignee := strings.TrimSpace(req.AssigneeID)
	t.AssigneeID = &assignee
	t.StatusReason = ""
}

func requireReason(_ *domain.Ticket, req Request) string {
	if strings.TrimSpace(req.Reason) == "" {
		return "a reason is required"
	}
	return ""
}

func assigneeOrAdmin(t *domain.Ticket, req Request) string {
	if t.IsAssignee(req.Actor.ID) || req.Actor.Can(domain.CapAdminOverride) {
		return ""
	}
	return "only the assignee or an admin can do this"
}
