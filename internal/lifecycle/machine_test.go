package lifecycle

import (
	"testing"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

var now = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

var (
	tenant     = domain.Actor{ID: "tenant-1", Role: domain.Tenant, PropertyIDs: []string{"prop-a"}}
	resolver   = domain.Actor{ID: "staff-1", Role: domain.Staff, PropertyIDs: []string{"prop-a"}}
	otherStaff = domain.Actor{ID: "staff-2", Role: domain.Staff, PropertyIDs: []string{"prop-a"}}
	admin      = domain.Actor{ID: "admin-1", Role: domain.PropertyAdmin, PropertyIDs: []string{"prop-a"}}
)

func ticketIn(status domain.TicketStatus) *domain.Ticket {
	t := &domain.Ticket{
		ID:         "ticket-1",
		Status:     status,
		PropertyID: "prop-a",
		CreatorID:  tenant.ID,
		Priority:   domain.TicketPriorityHigh,
		CreatedAt:  now.Add(-2 * time.Hour),
		UpdatedAt:  now.Add(-2 * time.Hour),
	}
	if !status.Unassigned() {
		assignee := resolver.ID
		t.AssigneeID = &assignee
	}
	if status.Done() {
		resolved := now.Add(-time.Hour)
		t.ResolvedAt = &resolved
	}
	if status == domain.TicketStatusPaused {
		started := now.Add(-30 * time.Minute)
		t.SLAPaused = true
		t.SLAPauseStartedAt = &started
	}
	return t
}

func expectDenied(t *testing.T, err error) {
	t.Helper()
	if !apperrors.HasCode(err, apperrors.CodeTransitionDenied) {
		t.Fatalf("expected TransitionDenied, got %v", err)
	}
}

func TestSelfClaimAndDispatch(t *testing.T) {
	t.Run("resolver claims for themselves", func(t *testing.T) {
		plan, err := Transition(ticketIn(domain.TicketStatusOpen), Request{Actor: resolver, To: domain.TicketStatusAssigned, AssigneeID: resolver.ID}, now)
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		if !plan.Ticket.IsAssignee(resolver.ID) {
			t.Fatalf("expected resolver to be assignee")
		}
		if plan.ExpectedStatus != domain.TicketStatusOpen {
			t.Fatalf("expected CAS on open, got %s", plan.ExpectedStatus)
		}
		if len(plan.Events) != 1 || plan.Events[0] != events.EventTicketAssigned {
			t.Fatalf("expected ASSIGNED event, got %v", plan.Events)
		}
	})

	t.Run("resolver cannot claim for someone else", func(t *testing.T) {
		_, err := Transition(ticketIn(domain.TicketStatusOpen), Request{Actor: resolver, To: domain.TicketStatusAssigned, AssigneeID: otherStaff.ID}, now)
		expectDenied(t, err)
	})

	t.Run("dispatcher assigns from waitlist", func(t *testing.T) {
		plan, err := Transition(ticketIn(domain.TicketStatusWaitlist), Request{Actor: admin, To: domain.TicketStatusAssigned, AssigneeID: otherStaff.ID}, now)
		if err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if !plan.Ticket.IsAssignee(otherStaff.ID) {
			t.Fatalf("expected staff-2 to be assignee")
		}
	})

	t.Run("resolver reference is required", func(t *testing.T) {
		_, err := Transition(ticketIn(domain.TicketStatusOpen), Request{Actor: admin, To: domain.TicketStatusAssigned}, now)
		expectDenied(t, err)
	})

	t.Run("tenants cannot assign", func(t *testing.T) {
		_, err := Transition(ticketIn(domain.TicketStatusOpen), Request{Actor: tenant, To: domain.TicketStatusAssigned, AssigneeID: tenant.ID}, now)
		expectDenied(t, err)
	})
}

func TestStartRequiresAssigneeAndRecordsWorkStart(t *testing.T) {
	_, err := Transition(ticketIn(domain.TicketStatusAssigned), Request{Actor: otherStaff, To: domain.TicketStatusInProgress}, now)
	expectDenied(t, err)

	plan, err := Transition(ticketIn(domain.TicketStatusAssigned), Request{Actor: resolver, To: domain.TicketStatusInProgress}, now)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if plan.Ticket.WorkStartedAt == nil || !plan.Ticket.WorkStartedAt.Equal(now) {
		t.Fatalf("expected work start at %s, got %v", now, plan.Ticket.WorkStartedAt)
	}
	if plan.Events[0] != events.EventTicketStatusChanged {
		t.Fatalf("expected STATUS_CHANGED, got %v", plan.Events)
	}
}

func TestPauseAndResumeDriveSLATimer(t *testing.T) {
	_, err := Transition(ticketIn(domain.TicketStatusInProgress), Request{Actor: resolver, To: domain.TicketStatusPaused}, now)
	expectDenied(t, err)

	plan, err := Transition(ticketIn(domain.TicketStatusInProgress), Request{Actor: resolver, To: domain.TicketStatusPaused, Reason: "waiting for parts"}, now)
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	paused := plan.Ticket
	if !paused.SLAPaused || paused.SLAPauseStartedAt == nil || paused.StatusReason != "waiting for parts" {
		t.Fatalf("expected SLA pause with reason, got %+v", paused)
	}

	plan, err = Transition(paused, Request{Actor: resolver, To: domain.TicketStatusInProgress}, now.Add(45*time.Minute))
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if plan.Ticket.SLAPaused || plan.Ticket.SLAAccumulatedPauseSeconds != 45*60 {
		t.Fatalf("expected 45m accumulated after resume, got %+v", plan.Ticket)
	}
}

func TestAnyActorCanResume(t *testing.T) {
	paused := ticketIn(domain.TicketStatusInProgress)
	paused.Status = domain.TicketStatusPaused
	paused.SLAPaused = true
	started := now.Add(-10 * time.Minute)
	paused.SLAPauseStartedAt = &started

	plan, err := Transition(paused, Request{Actor: tenant, To: domain.TicketStatusInProgress}, now)
	if err != nil {
		t.Fatalf("expected tenant resume to succeed, got %v", err)
	}
	if plan.Ticket.SLAPaused || plan.Ticket.SLAAccumulatedPauseSeconds != 10*60 {
		t.Fatalf("expected 10m accumulated after resume, got %+v", plan.Ticket)
	}
}

func TestBlockDoesNotPauseSLA(t *testing.T) {
	plan, err := Transition(ticketIn(domain.TicketStatusInProgress), Request{Actor: resolver, To: domain.TicketStatusBlocked, Reason: "no access to unit"}, now)
	if err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if plan.Ticket.SLAPaused {
		t.Fatalf("expected blocked ticket to keep SLA running")
	}

	plan, err = Transition(ticketIn(domain.TicketStatusPaused), Request{Actor: resolver, To: domain.TicketStatusBlocked, Reason: "escalated"}, now)
	if err != nil {
		t.Fatalf("block from paused failed: %v", err)
	}
	if plan.Ticket.SLAPaused || plan.Ticket.SLAAccumulatedPauseSeconds != 30*60 {
		t.Fatalf("expected pause window folded in when blocking, got %+v", plan.Ticket)
	}

	_, err = Transition(ticketIn(domain.TicketStatusOpen), Request{Actor: resolver, To: domain.TicketStatusBlocked}, now)
	expectDenied(t, err)
}

func TestBlockingResolvedTicketClearsResolution(t *testing.T) {
	plan, err := Transition(ticketIn(domain.TicketStatusResolved), Request{Actor: resolver, To: domain.TicketStatusBlocked, Reason: "leak is back"}, now)
	if err != nil {
		t.Fatalf("block from resolved failed: %v", err)
	}
	if plan.Ticket.ResolvedAt != nil {
		t.Fatalf("expected resolved_at cleared, got %v", plan.Ticket.ResolvedAt)
	}
	if err := plan.Ticket.CheckInvariants(); err != nil {
		t.Fatalf("expected valid blocked ticket, got %v", err)
	}

	_, err = Transition(ticketIn(domain.TicketStatusClosed), Request{Actor: admin, To: domain.TicketStatusBlocked, Reason: "leak is back"}, now)
	expectDenied(t, err)
}

func TestResolveCloseAndReopen(t *testing.T) {
	_, err := Transition(ticketIn(domain.TicketStatusInProgress), Request{Actor: otherStaff, To: domain.TicketStatusResolved}, now)
	expectDenied(t, err)

	plan, err := Transition(ticketIn(domain.TicketStatusBlocked), Request{Actor: admin, To: domain.TicketStatusResolved}, now)
	if err != nil {
		t.Fatalf("admin resolve failed: %v", err)
	}
	if plan.Ticket.ResolvedAt == nil || plan.Events[0] != events.EventTicketCompleted {
		t.Fatalf("expected resolved_at and COMPLETED, got %+v %v", plan.Ticket, plan.Events)
	}

	_, err = Transition(ticketIn(domain.TicketStatusResolved), Request{Actor: resolver, To: domain.TicketStatusClosed}, now)
	expectDenied(t, err)

	plan, err = Transition(ticketIn(domain.TicketStatusResolved), Request{Actor: domain.SystemActor(), To: domain.TicketStatusClosed}, now)
	if err != nil {
		t.Fatalf("system close failed: %v", err)
	}
	if plan.Ticket.ResolvedAt == nil {
		t.Fatalf("expected closed ticket to keep resolved_at")
	}

	_, err = Transition(ticketIn(domain.TicketStatusResolved), Request{Actor: resolver, To: domain.TicketStatusInProgress}, now)
	expectDenied(t, err)

	plan, err = Transition(ticketIn(domain.TicketStatusResolved), Request{Actor: admin, To: domain.TicketStatusInProgress}, now)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if plan.Ticket.ResolvedAt != nil {
		t.Fatalf("expected reopen to clear resolved_at")
	}
}

func TestClosedIsTerminal(t *testing.T) {
	for _, to := range domain.AllStatuses {
		_, err := Transition(ticketIn(domain.TicketStatusClosed), Request{Actor: domain.Actor{ID: "root", Role: domain.OrgAdmin}, To: to}, now)
		expectDenied(t, err)
	}
	if targets := Targets(domain.TicketStatusClosed); len(targets) != 0 {
		t.Fatalf("expected no targets from closed, got %v", targets)
	}
}

func TestReassignment(t *testing.T) {
	plan, err := Transition(ticketIn(domain.TicketStatusInProgress), Request{Actor: admin, To: domain.TicketStatusAssigned, AssigneeID: otherStaff.ID}, now)
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if !plan.Ticket.IsAssignee(otherStaff.ID) || plan.Ticket.WorkStartedAt != nil {
		t.Fatalf("expected new assignee with reset work start, got %+v", plan.Ticket)
	}

	_, err = Transition(ticketIn(domain.TicketStatusAssigned), Request{Actor: admin, To: domain.TicketStatusAssigned, AssigneeID: resolver.ID}, now)
	expectDenied(t, err)

	_, err = Transition(ticketIn(domain.TicketStatusAssigned), Request{Actor: resolver, To: domain.TicketStatusAssigned, AssigneeID: otherStaff.ID}, now)
	expectDenied(t, err)
}

func TestPlanBumpsVersion(t *testing.T) {
	current := ticketIn(domain.TicketStatusAssigned)
	current.Version = 7
	plan, err := Transition(current, Request{Actor: admin, To: domain.TicketStatusAssigned, AssigneeID: otherStaff.ID}, now)
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if plan.ExpectedVersion != 7 || plan.Ticket.Version != 8 {
		t.Fatalf("expected CAS on version 7 writing 8, got %d/%d", plan.ExpectedVersion, plan.Ticket.Version)
	}
}

func TestOnlyFromKeepsClaimFromBecomingReassignment(t *testing.T) {
	claim := Request{
		Actor:      admin,
		To:         domain.TicketStatusAssigned,
		AssigneeID: admin.ID,
		OnlyFrom:   []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusWaitlist},
	}
	if _, err := Transition(ticketIn(domain.TicketStatusOpen), claim, now); err != nil {
		t.Fatalf("claim from open failed: %v", err)
	}
	_, err := Transition(ticketIn(domain.TicketStatusAssigned), claim, now)
	expectDenied(t, err)
}

func TestTransitionLeavesInputUntouched(t *testing.T) {
	original := ticketIn(domain.TicketStatusInProgress)
	if _, err := Transition(original, Request{Actor: resolver, To: domain.TicketStatusPaused, Reason: "lunch"}, now); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if original.Status != domain.TicketStatusInProgress || original.SLAPaused {
		t.Fatalf("expected input ticket unchanged, got %+v", original)
	}

	if _, err := Transition(original, Request{Actor: tenant, To: domain.TicketStatusResolved}, now); err == nil {
		t.Fatalf("expected denial")
	}
	if original.Status != domain.TicketStatusInProgress {
		t.Fatalf("expected denied transition to leave ticket unchanged")
	}
}

func TestUnknownStatusIsValidationError(t *testing.T) {
	_, err := Transition(ticketIn(domain.TicketStatusOpen), Request{Actor: admin, To: "archived"}, now)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitialStatus(t *testing.T) {
	cases := []struct {
		eligible, auto bool
		want           domain.TicketStatus
	}{
		{true, true, domain.TicketStatusAssigned},
		{true, false, domain.TicketStatusOpen},
		{false, true, domain.TicketStatusWaitlist},
		{false, false, domain.TicketStatusWaitlist},
	}
	for _, tc := range cases {
		if got := InitialStatus(tc.eligible, tc.auto); got != tc.want {
			t.Fatalf("InitialStatus(%v, %v): expected %s, got %s", tc.eligible, tc.auto, tc.want, got)
		}
	}
}

func TestCheckDetailsEdit(t *testing.T) {
	if err := CheckDetailsEdit(ticketIn(domain.TicketStatusOpen), tenant); err != nil {
		t.Fatalf("expected creator edit to pass, got %v", err)
	}
	if err := CheckDetailsEdit(ticketIn(domain.TicketStatusOpen), resolver); !apperrors.HasCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := CheckDetailsEdit(ticketIn(domain.TicketStatusClosed), admin); !apperrors.HasCode(err, apperrors.CodeTransitionDenied) {
		t.Fatalf("expected closed ticket edit to be denied, got %v", err)
	}
}
