package domain

import (
	"errors"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusWaitlist   TicketStatus = "waitlist"
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPaused     TicketStatus = "paused"
	TicketStatusBlocked    TicketStatus = "blocked"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TicketStatus{
	TicketStatusWaitlist,
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusPaused,
	TicketStatusBlocked,
	TicketStatusResolved,
	TicketStatusClosed,
}

// ActiveStatuses count toward a resolver's load.
var ActiveStatuses = []TicketStatus{
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusPaused,
	TicketStatusBlocked,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range AllStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Done reports whether the ticket reached resolution (soft or hard terminal).
func (s TicketStatus) Done() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Unassigned reports whether the status forbids an assignee.
func (s TicketStatus) Unassigned() bool {
	return s == TicketStatusOpen || s == TicketStatusWaitlist
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for maintenance/service requests.
type Ticket struct {
	ID                         string
	DisplayCode                string
	Title                      string
	Description                string
	Category                   string
	Priority                   TicketPriority
	Status                     TicketStatus
	StatusReason               string
	PropertyID                 string
	OrganizationID             string
	CreatorID                  string
	AssigneeID                 *string
	RaisedByRole               RoleName
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
	Version                    int64
	WorkStartedAt              *time.Time
	ResolvedAt                 *time.Time
	SLAPaused                  bool
	SLAPauseStartedAt          *time.Time
	SLAAccumulatedPauseSeconds int64
	DeletedAt                  *time.Time
}

var (
	ErrResolvedAtMismatch  = errors.New("resolved_at must be set exactly when status is resolved or closed")
	ErrPauseStartMissing   = errors.New("sla_paused requires sla_pause_started_at")
	ErrAssigneeOnUnclaimed = errors.New("open or waitlisted tickets cannot carry an assignee")
)

// CheckInvariants validates the cross-field rules every persisted ticket satisfies.
func (t *Ticket) CheckInvariants() error {
	if (t.ResolvedAt != nil) != t.Status.Done() {
		return ErrResolvedAtMismatch
	}
	if t.SLAPaused && t.SLAPauseStartedAt == nil {
		return ErrPauseStartMissing
	}
	if t.AssigneeID != nil && t.Status.Unassigned() {
		return ErrAssigneeOnUnclaimed
	}
	return nil
}

// IsAssignee reports whether userID is the current assignee.
func (t *Ticket) IsAssignee(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// Clone returns a deep copy safe to mutate.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.AssigneeID = cloneString(t.AssigneeID)
	c.WorkStartedAt = cloneTime(t.WorkStartedAt)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	c.SLAPauseStartedAt = cloneTime(t.SLAPauseStartedAt)
	c.DeletedAt = cloneTime(t.DeletedAt)
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
