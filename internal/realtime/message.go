// Package realtime pushes notification and ticket updates to connected clients.
// A process-local Hub fans messages out to subscribers; a RedisBridge relays
// them across instances.
package realtime

import (
	"context"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
)

// Kind names the SSE event a message is rendered as.
type Kind string

const (
	KindNotification Kind = "notification.created"
	KindUnreadCount  Kind = "notification.unread"
	KindTicket       Kind = "ticket.updated"
	// KindCacheInvalidate travels between instances only and has no recipient.
	KindCacheInvalidate Kind = "cache.invalidate"
)

// Message is addressed to a single recipient.
type Message struct {
	Kind         Kind                  `json:"kind"`
	RecipientID  string                `json:"recipient_id,omitempty"`
	Notification *NotificationSnapshot `json:"notification,omitempty"`
	UnreadCount  *int                  `json:"unread_count,omitempty"`
	Ticket       *TicketSnapshot       `json:"ticket,omitempty"`
	CachePrefix  string                `json:"cache_prefix,omitempty"`
	Origin       string                `json:"origin,omitempty"`
	SentAt       time.Time             `json:"sent_at"`
}

// NotificationSnapshot is the wire form of a notification record.
type NotificationSnapshot struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	TicketID  *string                 `json:"ticket_id,omitempty"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// TicketSnapshot is the wire form of a ticket change.
type TicketSnapshot struct {
	ID         string                `json:"id"`
	PropertyID string                `json:"property_id"`
	Title      string                `json:"title"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	AssigneeID *string               `json:"assignee_id,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Publisher delivers a message to its recipient's subscribers.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// SnapshotNotification converts a stored notification.
func SnapshotNotification(n domain.Notification) *NotificationSnapshot {
	return &NotificationSnapshot{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		TicketID:  n.TicketID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// SnapshotTicket converts a ticket.
func SnapshotTicket(t *domain.Ticket) *TicketSnapshot {
	return &TicketSnapshot{
		ID:         t.ID,
		PropertyID: t.PropertyID,
		Title:      t.Title,
		Status:     t.Status,
		Priority:   t.Priority,
		AssigneeID: t.AssigneeID,
		UpdatedAt:  t.UpdatedAt,
	}
}

// ReconcileTicket merges a pushed ticket into the locally held copy. The newer
// UpdatedAt wins; on a tie the remote copy wins.
func ReconcileTicket(local, remote *TicketSnapshot) *TicketSnapshot {
	switch {
	case remote == nil:
		return local
	case local == nil:
		return remote
	case remote.UpdatedAt.Before(local.UpdatedAt):
		return local
	default:
		return remote
	}
}
