package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/lifecycle"
	"github.com/facilityops/facility-service/internal/repository"
	"github.com/facilityops/facility-service/internal/sla"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// planFunc computes the next ticket state from a freshly loaded copy.
type planFunc func(ctx context.Context, current *domain.Ticket, now time.Time) (*lifecycle.Plan, error)

// ticketWriter persists ticket changes with compare-and-swap and runs the
// post-commit side effects shared by the ticket and assignment services.
type ticketWriter struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	cache      CacheInvalidator
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

func (w *ticketWriter) load(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, cancel := withStoreTimeout(ctx, w.timeout)
	defer cancel()
	ticket, err := w.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

// loadVisible hides tickets outside the actor's scope behind NotFound.
func (w *ticketWriter) loadVisible(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
	ticket, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessTicket(ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

// apply loads, plans and swaps. A lost swap is retried once against a fresh
// copy; if the retry loses again, or its guard no longer holds, the caller
// gets ConcurrentModification.
func (w *ticketWriter) apply(ctx context.Context, actor domain.Actor, id string, plan planFunc, automatic bool) (*domain.Ticket, error) {
	details := map[string]any{"ticket_id": id}
	for attempt := 0; attempt < 2; attempt++ {
		current, err := w.loadVisible(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		next, err := plan(ctx, current, w.now())
		if err != nil {
			if attempt > 0 && apperrors.HasCode(err, apperrors.CodeTransitionDenied) {
				return nil, apperrors.NewConcurrentModification("ticket", details)
			}
			return nil, err
		}
		err = w.swap(ctx, next)
		if errors.Is(err, repository.ErrStaleTicket) {
			w.logger.Debug("ticket swap lost", zap.String("ticket_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, storeError(err, "ticket", details)
		}
		w.afterCommit(ctx, actor, current, next, automatic)
		return next.Ticket, nil
	}
	return nil, apperrors.NewConcurrentModification("ticket", details)
}

// statusPin records the source statuses a transition may start from. When none
// are given up front, the first observed status becomes the only one allowed.
type statusPin struct {
	from []domain.TicketStatus
}

func (p *statusPin) observe(status domain.TicketStatus) []domain.TicketStatus {
	if len(p.from) == 0 {
		p.from = []domain.TicketStatus{status}
	}
	return p.from
}

func (w *ticketWriter) swap(ctx context.Context, plan *lifecycle.Plan) error {
	ctx, cancel := withStoreTimeout(ctx, w.timeout)
	defer cancel()
	return w.tickets.UpdateIfUnchanged(ctx, plan.Ticket, plan.ExpectedStatus, plan.ExpectedVersion)
}

func (w *ticketWriter) afterCommit(ctx context.Context, actor domain.Actor, before *domain.Ticket, plan *lifecycle.Plan, automatic bool) {
	after := plan.Ticket
	if before.Status != after.Status {
		newValue := map[string]any{"status": after.Status, "reason": after.StatusReason}
		if after.Status == domain.TicketStatusResolved {
			if res, ok := sla.ResolutionTime(after); ok {
				newValue["resolution_seconds"] = int64(res.Duration.Seconds())
				if res.Anomaly {
					w.logger.Warn("negative resolution time clamped to zero",
						zap.String("ticket_id", after.ID),
						zap.Time("created_at", after.CreatedAt),
						zap.Timep("resolved_at", after.ResolvedAt))
				}
			}
		}
		w.record(ctx, actor, after, domain.ChangeTypeStatus, map[string]any{"status": before.Status}, newValue)
	}
	if !sameString(before.AssigneeID, after.AssigneeID) {
		w.record(ctx, actor, after, domain.ChangeTypeAssignee,
			map[string]any{"assignee_id": before.AssigneeID},
			map[string]any{"assignee_id": after.AssigneeID, "automatic": automatic})
	}
	if before.Title != after.Title || before.Description != after.Description {
		w.record(ctx, actor, after, domain.ChangeTypeDetails,
			map[string]any{"title": before.Title, "description": before.Description},
			map[string]any{"title": after.Title, "description": after.Description})
	}
	w.invalidate(after.PropertyID)

	for _, eventType := range plan.Events {
		event := events.Event{
			Type:       eventType,
			TicketID:   after.ID,
			PropertyID: after.PropertyID,
			Actor:      events.ActorOf(actor),
			Ticket:     after.Clone(),
		}
		switch eventType {
		case events.EventTicketAssigned:
			event.Payload = events.AssignedPayload{
				AssigneeID:         derefString(after.AssigneeID),
				PreviousAssigneeID: before.AssigneeID,
				Automatic:          automatic,
			}
		case events.EventTicketCompleted, events.EventTicketStatusChanged:
			event.Payload = events.StatusChangedPayload{
				OldStatus: before.Status,
				NewStatus: after.Status,
				Reason:    after.StatusReason,
			}
		}
		w.publish(ctx, event)
	}
}

// record appends an audit entry. Failures are logged; the mutation already committed.
func (w *ticketWriter) record(ctx context.Context, actor domain.Actor, t *domain.Ticket, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	if w.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		ID:          newID(),
		TicketID:    t.ID,
		PropertyID:  t.PropertyID,
		ChangedBy:   actor.ID,
		ChangedRole: actor.Role.Name(),
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
		CreatedAt:   w.now(),
	}
	ctx, cancel := withStoreTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.history.Create(ctx, entry); err != nil {
		w.logger.Warn("failed to record ticket history",
			zap.String("ticket_id", t.ID),
			zap.String("change_type", string(change)),
			zap.Error(err))
	}
}

func (w *ticketWriter) invalidate(propertyID string) {
	if w.cache == nil {
		return
	}
	w.cache.InvalidatePrefix(TicketCachePrefix(propertyID))
}

func (w *ticketWriter) publish(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = newID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = w.now()
	}
	_ = w.dispatcher.Publish(ctx, event)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
