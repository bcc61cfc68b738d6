package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/realtime"
	"github.com/facilityops/facility-service/internal/repository"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

const (
	defaultNotificationPage = 20
	maxNotificationPage     = 100
)

// NotificationService turns domain events into deduplicated inbox records and
// pushes them to connected clients.
type NotificationService struct {
	notifications repository.NotificationRepository
	staff         repository.StaffRepository
	publisher     realtime.Publisher
	logger        *zap.Logger
	debounce      time.Duration
	timeout       time.Duration
	now           func() time.Time
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	StaffRepo        repository.StaffRepository
	Publisher        realtime.Publisher
	Debounce         time.Duration
	StoreTimeout     time.Duration
	Logger           *zap.Logger
	Now              func() time.Time
}

// NotificationPage is one page of a recipient's inbox.
type NotificationPage struct {
	Items  []domain.Notification
	Unread int
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		staff:         deps.StaffRepo,
		publisher:     deps.Publisher,
		logger:        logger.Named("notifications"),
		debounce:      deps.Debounce,
		timeout:       deps.StoreTimeout,
		now:           clockOrDefault(deps.Now),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	dispatcher.Subscribe(events.EventTicketCompleted, n.handleTicketCompleted)
	dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
	for _, t := range []events.EventType{
		events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketCompleted,
		events.EventTicketStatusChanged, events.EventTicketUpdated, events.EventTicketDeleted,
	} {
		dispatcher.Subscribe(t, n.handleTicketChanged)
	}
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil || ticket.Status != domain.TicketStatusWaitlist {
		return nil
	}
	admins, err := n.propertyAdmins(ctx, ticket)
	if err != nil {
		return err
	}
	return n.fanOut(ctx, admins, event.Actor.ID, domain.NotificationWaitlisted, ticket,
		"Ticket waitlisted",
		fmt.Sprintf("%s has no eligible resolver on shift", ticket.DisplayCode))
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil || ticket.AssigneeID == nil {
		return nil
	}
	if err := n.fanOut(ctx, []string{*ticket.AssigneeID}, event.Actor.ID, domain.NotificationAssigned, ticket,
		"New assignment",
		fmt.Sprintf("%s was assigned to you: %s", ticket.DisplayCode, ticket.Title)); err != nil {
		return err
	}
	return n.fanOut(ctx, []string{ticket.CreatorID}, event.Actor.ID, domain.NotificationAssigned, ticket,
		"Ticket assigned",
		fmt.Sprintf("%s now has a resolver", ticket.DisplayCode))
}

func (n *NotificationService) handleTicketCompleted(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil {
		return nil
	}
	return n.fanOut(ctx, []string{ticket.CreatorID}, event.Actor.ID, domain.NotificationCompleted, ticket,
		"Ticket "+string(ticket.Status),
		fmt.Sprintf("%s was marked %s", ticket.DisplayCode, ticket.Status))
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil {
		return nil
	}
	recipients, err := n.propertyAdmins(ctx, ticket)
	if err != nil {
		return err
	}
	if ticket.AssigneeID != nil {
		recipients = append(recipients, *ticket.AssigneeID)
	}
	return n.fanOut(ctx, recipients, "", domain.NotificationSLABreach, ticket,
		"SLA breached",
		fmt.Sprintf("%s (%s) is past its service target", ticket.DisplayCode, ticket.Priority))
}

// handleTicketChanged pushes the latest ticket state to its creator and assignee.
func (n *NotificationService) handleTicketChanged(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil {
		return nil
	}
	snapshot := realtime.SnapshotTicket(ticket)
	for _, recipient := range uniqueRecipients([]string{ticket.CreatorID, derefString(ticket.AssigneeID)}, "") {
		n.push(ctx, realtime.Message{Kind: realtime.KindTicket, RecipientID: recipient, Ticket: snapshot})
	}
	return nil
}

func (n *NotificationService) fanOut(ctx context.Context, recipients []string, actorID string, kind domain.NotificationType, ticket *domain.Ticket, title, message string) error {
	var errs []error
	for _, recipient := range uniqueRecipients(recipients, actorID) {
		ticketID := ticket.ID
		_, err := n.Notify(ctx, domain.Notification{
			RecipientID: recipient,
			Type:        kind,
			Title:       title,
			Message:     message,
			TicketID:    &ticketID,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notify persists a notification unless an unread duplicate for the same
// recipient, type and ticket exists inside the debounce window, then pushes it.
func (n *NotificationService) Notify(ctx context.Context, notification domain.Notification) (bool, error) {
	now := n.now()
	notification.ID = newID()
	notification.IsRead = false
	notification.ReadAt = nil
	notification.CreatedAt = now

	storeCtx, cancel := withStoreTimeout(ctx, n.timeout)
	created, err := n.notifications.CreateUnlessUnread(storeCtx, &notification, now.Add(-n.debounce))
	cancel()
	if err != nil {
		return false, storeError(err, "notification", nil)
	}
	if !created {
		n.logger.Debug("notification suppressed",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("type", string(notification.Type)))
		return false, nil
	}

	n.push(ctx, realtime.Message{
		Kind:         realtime.KindNotification,
		RecipientID:  notification.RecipientID,
		Notification: realtime.SnapshotNotification(notification),
	})
	n.pushUnread(ctx, notification.RecipientID)
	return true, nil
}

// List returns the caller's notifications, newest first, with the unread total.
func (n *NotificationService) List(ctx context.Context, actor domain.Actor, limit, offset int) (*NotificationPage, error) {
	if limit <= 0 {
		limit = defaultNotificationPage
	}
	if limit > maxNotificationPage {
		limit = maxNotificationPage
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := withStoreTimeout(ctx, n.timeout)
	defer cancel()
	items, err := n.notifications.ListByRecipient(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, storeError(err, "notification", nil)
	}
	unread, err := n.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, storeError(err, "notification", nil)
	}
	return &NotificationPage{Items: items, Unread: unread}, nil
}

// MarkRead marks one of the caller's notifications read. Repeating it is a no-op.
func (n *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id string) (*domain.Notification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("notification id required", nil)
	}
	storeCtx, cancel := withStoreTimeout(ctx, n.timeout)
	notification, err := n.notifications.MarkRead(storeCtx, actor.ID, id, n.now())
	cancel()
	if err != nil {
		return nil, storeError(err, "notification", map[string]any{"notification_id": id})
	}
	n.pushUnread(ctx, actor.ID)
	return notification, nil
}

// MarkAllRead clears the caller's unread notifications.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor domain.Actor) (int64, error) {
	storeCtx, cancel := withStoreTimeout(ctx, n.timeout)
	count, err := n.notifications.MarkAllRead(storeCtx, actor.ID, n.now())
	cancel()
	if err != nil {
		return 0, storeError(err, "notification", nil)
	}
	n.pushUnread(ctx, actor.ID)
	return count, nil
}

// UnreadCount returns the caller's unread total.
func (n *NotificationService) UnreadCount(ctx context.Context, actor domain.Actor) (int, error) {
	ctx, cancel := withStoreTimeout(ctx, n.timeout)
	defer cancel()
	count, err := n.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, storeError(err, "notification", nil)
	}
	return count, nil
}

func (n *NotificationService) pushUnread(ctx context.Context, recipientID string) {
	storeCtx, cancel := withStoreTimeout(ctx, n.timeout)
	count, err := n.notifications.CountUnread(storeCtx, recipientID)
	cancel()
	if err != nil {
		n.logger.Warn("failed to count unread notifications", zap.String("recipient_id", recipientID), zap.Error(err))
		return
	}
	n.push(ctx, realtime.Message{Kind: realtime.KindUnreadCount, RecipientID: recipientID, UnreadCount: &count})
}

// push is best effort; the record is already persisted.
func (n *NotificationService) push(ctx context.Context, msg realtime.Message) {
	if n.publisher == nil {
		return
	}
	msg.SentAt = n.now()
	if err := n.publisher.Publish(ctx, msg); err != nil {
		n.logger.Warn("realtime push failed",
			zap.String("recipient_id", msg.RecipientID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err))
	}
}

func (n *NotificationService) propertyAdmins(ctx context.Context, ticket *domain.Ticket) ([]string, error) {
	if n.staff == nil {
		return nil, nil
	}
	ctx, cancel := withStoreTimeout(ctx, n.timeout)
	defer cancel()
	active := true
	propertyID := ticket.PropertyID
	admins, err := n.staff.List(ctx, repository.StaffFilter{
		OrganizationID: ticket.OrganizationID,
		PropertyID:     &propertyID,
		Roles:          []domain.RoleName{domain.RolePropertyAdmin},
		Active:         &active,
	})
	if err != nil {
		return nil, storeError(err, "staff", nil)
	}
	ids := make([]string, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// uniqueRecipients drops blanks, duplicates and the actor who caused the event.
func uniqueRecipients(ids []string, actorID string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == actorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
