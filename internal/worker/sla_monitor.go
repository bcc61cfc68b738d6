package worker

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/repository"
	"github.com/facilityops/facility-service/internal/sla"
)

const scanPage = 200

// SLAMonitor periodically publishes SLA_BREACHED for every open ticket past
// its threshold. Repeats are collapsed downstream by notification dedup.
type SLAMonitor struct {
	tickets    repository.TicketRepository
	policy     sla.Policy
	dispatcher events.Dispatcher
	interval   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewSLAMonitor builds the monitor. A nil clock uses time.Now.
func NewSLAMonitor(tickets repository.TicketRepository, policy sla.Policy, dispatcher events.Dispatcher, interval time.Duration, logger *zap.Logger, now func() time.Time) *SLAMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &SLAMonitor{
		tickets:    tickets,
		policy:     policy,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger.Named("sla_monitor"),
		now:        now,
	}
}

// Run scans on every tick until ctx is cancelled.
func (m *SLAMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Scan(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("sla scan failed", zap.Error(err))
			}
		}
	}
}

// Scan publishes one event per breached ticket and returns them.
func (m *SLAMonitor) Scan(ctx context.Context) ([]Breach, error) {
	now := m.now()
	breaches, err := FindBreaches(ctx, m.tickets, m.policy, now, scanPage)
	if err != nil {
		return nil, err
	}
	for _, b := range breaches {
		m.publish(ctx, b, now)
	}
	if len(breaches) > 0 {
		m.logger.Info("sla breaches detected", zap.Int("count", len(breaches)))
	}
	return breaches, nil
}

func (m *SLAMonitor) publish(ctx context.Context, b Breach, now time.Time) {
	if m.dispatcher == nil {
		return
	}
	system := domain.SystemActor()
	_ = m.dispatcher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.EventSLABreached,
		TicketID:   b.Ticket.ID,
		PropertyID: b.Ticket.PropertyID,
		Actor:      events.ActorOf(system),
		Timestamp:  now,
		Ticket:     b.Ticket,
		Payload:    events.SLABreachedPayload{Threshold: b.Threshold, ServiceTime: b.ServiceTime},
	})
}

// Breach is an active ticket past its threshold.
type Breach struct {
	Ticket      *domain.Ticket
	Threshold   time.Duration
	ServiceTime time.Duration
}

// FindBreaches pages through every unfinished ticket and reports those past
// their threshold at now, most overdue first.
func FindBreaches(ctx context.Context, tickets repository.TicketRepository, policy sla.Policy, now time.Time, pageSize int) ([]Breach, error) {
	if pageSize <= 0 {
		pageSize = scanPage
	}
	statuses := []domain.TicketStatus{domain.TicketStatusWaitlist, domain.TicketStatusOpen}
	statuses = append(statuses, domain.ActiveStatuses...)

	var out []Breach
	for offset := 0; ; offset += pageSize {
		page, err := tickets.List(ctx, repository.TicketFilter{
			Statuses:    statuses,
			OldestFirst: true,
			Limit:       pageSize,
			Offset:      offset,
		})
		if err != nil {
			return nil, err
		}
		for i := range page {
			t := &page[i]
			if !policy.Breached(t, now) {
				continue
			}
			out = append(out, Breach{
				Ticket:      t,
				Threshold:   policy.Threshold(t.Priority, t.Category),
				ServiceTime: sla.ServiceTime(t, now),
			})
		}
		if len(page) < pageSize {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ServiceTime-out[i].Threshold > out[j].ServiceTime-out[j].Threshold
	})
	return out, nil
}
