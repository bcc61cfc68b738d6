package events

import (
	"time"

	"github.com/facilityops/facility-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "CREATED"
	EventTicketAssigned      EventType = "ASSIGNED"
	EventTicketCompleted     EventType = "COMPLETED"
	EventTicketStatusChanged EventType = "STATUS_CHANGED"
	EventTicketUpdated       EventType = "UPDATED"
	EventTicketDeleted       EventType = "DELETED"
	EventSLABreached         EventType = "SLA_BREACHED"
	EventShiftCheckedIn      EventType = "SHIFT_CHECKED_IN"
	EventShiftCheckedOut     EventType = "SHIFT_CHECKED_OUT"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string          `json:"id"`
	Role domain.RoleName `json:"role"`
}

// ActorOf converts a domain actor for event payloads.
func ActorOf(a domain.Actor) Actor {
	return Actor{ID: a.ID, Role: a.Role.Name()}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	TicketID   string         `json:"ticket_id,omitempty"`
	PropertyID string         `json:"property_id,omitempty"`
	Actor      Actor          `json:"actor"`
	Timestamp  time.Time      `json:"timestamp"`
	Ticket     *domain.Ticket `json:"-"`
	Payload    interface{}    `json:"payload,omitempty"`
}

// StatusChangedPayload accompanies every lifecycle transition.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// AssignedPayload names the new and previous resolver.
type AssignedPayload struct {
	AssigneeID         string  `json:"assignee_id"`
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
	Automatic          bool    `json:"automatic"`
}

// SLABreachedPayload reports how far past its threshold a ticket is.
type SLABreachedPayload struct {
	Threshold   time.Duration `json:"threshold"`
	ServiceTime time.Duration `json:"service_time"`
}

// ShiftPayload describes a check-in or check-out.
type ShiftPayload struct {
	UserID     string    `json:"user_id"`
	PropertyID string    `json:"property_id"`
	At         time.Time `json:"at"`
}
