package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/facilityops/facility-service/internal/dispatch"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/realtime"
	"github.com/facilityops/facility-service/internal/repository"
	"github.com/facilityops/facility-service/internal/repository/memory"
	"github.com/facilityops/facility-service/internal/sla"
	"github.com/facilityops/facility-service/internal/testfixtures"
)

type harness struct {
	clock         *testfixtures.Clock
	stores        testfixtures.Stores
	dispatcher    events.Dispatcher
	hub           *realtime.Hub
	cache         *recordingInvalidator
	tickets       *TicketService
	assignments   *AssignmentService
	shifts        *ShiftService
	notifications *NotificationService
}

type harnessOptions struct {
	autoAssign bool
	ticketRepo repository.TicketRepository
	debounce   time.Duration
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	h := &harness{
		clock:      testfixtures.NewClock(testfixtures.ReferenceTime()),
		stores:     testfixtures.NewStores(),
		dispatcher: events.NewInMemoryDispatcher(nil),
		hub:        realtime.NewHub(),
		cache:      &recordingInvalidator{},
	}
	ticketRepo := opts.ticketRepo
	if ticketRepo == nil {
		ticketRepo = h.stores.Tickets
	}
	if opts.debounce == 0 {
		opts.debounce = time.Minute
	}
	selector := dispatch.Selector{Policy: sla.DefaultPolicy(), RequireCheckIn: true}

	h.assignments = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  ticketRepo,
		StaffRepo:   h.stores.Staff,
		ShiftRepo:   h.stores.Shifts,
		HistoryRepo: h.stores.History,
		Dispatcher:  h.dispatcher,
		Cache:       h.cache,
		Selector:    selector,
		Now:         h.clock.NowFunc(),
	})
	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: h.stores.History,
		Dispatcher:  h.dispatcher,
		Cache:       h.cache,
		Assignments: h.assignments,
		Policy:      sla.DefaultPolicy(),
		AutoAssign:  opts.autoAssign,
		Now:         h.clock.NowFunc(),
	})
	h.shifts = NewShiftService(ShiftDependencies{
		ShiftRepo:  h.stores.Shifts,
		Dispatcher: h.dispatcher,
		Now:        h.clock.NowFunc(),
	})
	h.notifications = NewNotificationService(NotificationDependencies{
		NotificationRepo: h.stores.Notifications,
		StaffRepo:        h.stores.Staff,
		Publisher:        h.hub,
		Debounce:         opts.debounce,
		Now:              h.clock.NowFunc(),
	})
	h.assignments.RegisterHandlers(h.dispatcher)
	h.notifications.RegisterHandlers(h.dispatcher)
	return h
}

func tenant() domain.Actor {
	return testfixtures.Actor("tenant-1", domain.Tenant, testfixtures.PropertyA)
}

func resolver(member domain.StaffMember) domain.Actor {
	role, _ := domain.ParseRole(string(member.Role))
	return testfixtures.Actor(member.ID, role, member.PropertyIDs...)
}

func orgAdmin() domain.Actor {
	return testfixtures.Actor("org-admin", domain.OrgAdmin)
}

func (h *harness) checkIn(t *testing.T, member domain.StaffMember) {
	t.Helper()
	if _, err := h.shifts.CheckIn(context.Background(), resolver(member), testfixtures.PropertyA); err != nil {
		t.Fatalf("check-in %s failed: %v", member.ID, err)
	}
}

func (h *harness) raise(t *testing.T, category string) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.Create(context.Background(), tenant(), TicketCreateInput{
		PropertyID: testfixtures.PropertyA,
		Title:      "Leaking tap in unit 4",
		Category:   category,
		Priority:   domain.TicketPriorityHigh,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return ticket
}

type recordingInvalidator struct {
	mu       sync.Mutex
	prefixes []string
}

func (r *recordingInvalidator) InvalidatePrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefix)
	return 0
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prefixes)
}

// barrierTickets holds the next n reads until all n have happened, so that
// concurrent writers plan against the same snapshot.
type barrierTickets struct {
	*memory.TicketRepository
	mu      sync.Mutex
	pending int
	gate    sync.WaitGroup
}

func (b *barrierTickets) arm(n int) {
	b.mu.Lock()
	b.pending = n
	b.gate.Add(n)
	b.mu.Unlock()
}

func (b *barrierTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := b.TicketRepository.GetByID(ctx, id)
	b.mu.Lock()
	hold := b.pending > 0
	if hold {
		b.pending--
	}
	b.mu.Unlock()
	if hold {
		b.gate.Done()
		b.gate.Wait()
	}
	return ticket, err
}

// flakyTickets loses the first compare-and-swap it sees.
type flakyTickets struct {
	*memory.TicketRepository
	mu     sync.Mutex
	failed bool
	swaps  int
}

func (f *flakyTickets) UpdateIfUnchanged(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus, version int64) error {
	f.mu.Lock()
	f.swaps++
	first := !f.failed
	f.failed = true
	f.mu.Unlock()
	if first {
		return repository.ErrStaleTicket
	}
	return f.TicketRepository.UpdateIfUnchanged(ctx, ticket, status, version)
}
