package domain

import "time"

// NotificationType classifies notification records for deduplication and display.
type NotificationType string

const (
	NotificationAssigned   NotificationType = "ASSIGNED"
	NotificationCompleted  NotificationType = "COMPLETED"
	NotificationSLABreach  NotificationType = "SLA_BREACH"
	NotificationWaitlisted NotificationType = "WAITLISTED"
)

// Notification is a per-recipient inbox record. Only the read state is mutable.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	TicketID    *string
	IsRead      bool
	CreatedAt   time.Time
	ReadAt      *time.Time
}

// DedupKey identifies the (recipient, type, ticket) triple.
func (n Notification) DedupKey() string {
	ticket := ""
	if n.TicketID != nil {
		ticket = *n.TicketID
	}
	return n.RecipientID + "|" + string(n.Type) + "|" + ticket
}
