package dashboard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facilityops/facility-service/internal/cache"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
	"github.com/facilityops/facility-service/internal/repository/memory"
	"github.com/facilityops/facility-service/internal/sla"
	"github.com/facilityops/facility-service/internal/testfixtures"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

type countingTickets struct {
	repository.TicketRepository
	lists atomic.Int32
	block bool
}

func (c *countingTickets) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	c.lists.Add(1)
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.TicketRepository.List(ctx, filter)
}

func seed(t *testing.T, repo *memory.TicketRepository, id string, status domain.TicketStatus, creator string, assignee string, createdAt time.Time) {
	t.Helper()
	ticket := &domain.Ticket{
		ID:             id,
		DisplayCode:    "FM-" + id,
		Title:          "ticket " + id,
		Category:       "plumbing",
		Priority:       domain.TicketPriorityHigh,
		Status:         status,
		PropertyID:     testfixtures.PropertyA,
		OrganizationID: testfixtures.OrgID,
		CreatorID:      creator,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if assignee != "" {
		ticket.AssigneeID = &assignee
	}
	if err := repo.Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func newBoardService(t *testing.T, repo repository.TicketRepository, clock *testfixtures.Clock, timeout time.Duration) (*Service, *cache.Store[[]domain.Ticket]) {
	t.Helper()
	store, err := cache.New[[]domain.Ticket](cache.Options{TTL: time.Minute, Now: clock.NowFunc()})
	if err != nil {
		t.Fatalf("cache init failed: %v", err)
	}
	t.Cleanup(store.Close)
	return NewService(Dependencies{
		TicketRepo:  repo,
		Cache:       store,
		Policy:      sla.DefaultPolicy(),
		LoadTimeout: timeout,
		Now:         clock.NowFunc(),
	}), store
}

func TestBoardScopesByRole(t *testing.T) {
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	repo := memory.NewTicketRepository()
	start := clock.Now().Add(-time.Hour)
	seed(t, repo, "t1", domain.TicketStatusAssigned, "tenant-1", "staff-plumber", start)
	seed(t, repo, "t2", domain.TicketStatusInProgress, "tenant-2", "staff-general", start.Add(time.Minute))
	seed(t, repo, "t3", domain.TicketStatusBlocked, "tenant-1", "staff-general", start.Add(2*time.Minute))

	svc, _ := newBoardService(t, repo, clock, time.Second)
	ctx := context.Background()
	view := ViewState{Tab: TabAll, PropertyID: testfixtures.PropertyA}

	tenant := testfixtures.Actor("tenant-1", domain.Tenant, testfixtures.PropertyA)
	board, err := svc.Board(ctx, tenant, view)
	if err != nil {
		t.Fatalf("tenant board failed: %v", err)
	}
	if board.Total != 2 {
		t.Fatalf("expected tenant to see own 2 tickets, got %d", board.Total)
	}

	plumber := testfixtures.Actor("staff-plumber", domain.Staff, testfixtures.PropertyA)
	board, err = svc.Board(ctx, plumber, view)
	if err != nil {
		t.Fatalf("staff board failed: %v", err)
	}
	if board.Total != 1 || board.Rows[0].Ticket.ID != "t1" {
		t.Fatalf("expected plumber to see only t1, got %+v", board.Rows)
	}

	admin := testfixtures.Actor("admin-a", domain.PropertyAdmin, testfixtures.PropertyA)
	board, err = svc.Board(ctx, admin, view)
	if err != nil {
		t.Fatalf("admin board failed: %v", err)
	}
	if board.Total != 3 || board.Counts[domain.TicketStatusInProgress] != 1 {
		t.Fatalf("expected admin to see all 3, got %d %v", board.Total, board.Counts)
	}

	outsider := testfixtures.Actor("admin-b", domain.PropertyAdmin, testfixtures.PropertyB)
	if _, err := svc.Board(ctx, outsider, view); !apperrors.HasCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected out-of-scope board to be denied, got %v", err)
	}
}

func TestBoardFlagsBreachesFirst(t *testing.T) {
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	repo := memory.NewTicketRepository()
	seed(t, repo, "fresh", domain.TicketStatusAssigned, "tenant-1", "staff-plumber", clock.Now().Add(-time.Hour))
	seed(t, repo, "late", domain.TicketStatusAssigned, "tenant-1", "staff-plumber", clock.Now().Add(-5*time.Hour))

	svc, _ := newBoardService(t, repo, clock, time.Second)
	admin := testfixtures.Actor("admin-a", domain.PropertyAdmin, testfixtures.PropertyA)
	board, err := svc.Board(context.Background(), admin, ViewState{})
	if err != nil {
		t.Fatalf("board failed: %v", err)
	}
	if board.Breached != 1 || !board.Rows[0].Breached || board.Rows[0].Ticket.ID != "late" {
		t.Fatalf("expected the late ticket first and breached, got %+v", board.Rows)
	}
	if board.View.PropertyID != testfixtures.PropertyA {
		t.Fatalf("expected the single scoped property to be used, got %q", board.View.PropertyID)
	}
}

func TestBoardReadsThroughCache(t *testing.T) {
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	inner := memory.NewTicketRepository()
	seed(t, inner, "t1", domain.TicketStatusWaitlist, "tenant-1", "", clock.Now())
	repo := &countingTickets{TicketRepository: inner}
	svc, store := newBoardService(t, repo, clock, time.Second)
	admin := testfixtures.Actor("admin-a", domain.PropertyAdmin, testfixtures.PropertyA)
	view := ViewState{Tab: TabUnassigned}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Board(ctx, admin, view); err != nil {
			t.Fatalf("board failed: %v", err)
		}
	}
	if got := repo.lists.Load(); got != 1 {
		t.Fatalf("expected one store read, got %d", got)
	}

	seed(t, inner, "t2", domain.TicketStatusOpen, "tenant-1", "", clock.Now())
	store.InvalidatePrefix("tickets-" + testfixtures.PropertyA + "-")
	board, err := svc.Board(ctx, admin, view)
	if err != nil {
		t.Fatalf("board failed: %v", err)
	}
	if board.Total != 2 || repo.lists.Load() != 2 {
		t.Fatalf("expected reload after invalidation, got total=%d reads=%d", board.Total, repo.lists.Load())
	}

	clock.Advance(2 * time.Minute)
	board, err = svc.Board(ctx, admin, view)
	if err != nil || !board.Stale {
		t.Fatalf("expected stale board served immediately, got %+v %v", board, err)
	}
	store.Wait()
}

func TestBoardSnapshotIsSharedAcrossOrganizations(t *testing.T) {
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	inner := memory.NewTicketRepository()
	seed(t, inner, "t1", domain.TicketStatusWaitlist, "tenant-1", "", clock.Now())
	repo := &countingTickets{TicketRepository: inner}
	svc, _ := newBoardService(t, repo, clock, time.Second)
	view := ViewState{Tab: TabAll, PropertyID: testfixtures.PropertyA}
	ctx := context.Background()

	outsider := domain.Actor{ID: "outsider", Role: domain.OrgAdmin, OrganizationID: testfixtures.OtherOrgID}
	if _, err := svc.Board(ctx, outsider, view); !apperrors.HasCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected foreign property to be denied, got %v", err)
	}

	owner := testfixtures.Actor("root", domain.OrgAdmin)
	board, err := svc.Board(ctx, owner, view)
	if err != nil {
		t.Fatalf("board failed: %v", err)
	}
	if board.Total != 1 || board.Stale {
		t.Fatalf("expected fresh board with 1 ticket, got total=%d stale=%v", board.Total, board.Stale)
	}
	if got := repo.lists.Load(); got != 1 {
		t.Fatalf("expected the snapshot to be shared, got %d store reads", got)
	}
}

func TestBoardLoadTimeout(t *testing.T) {
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	repo := &countingTickets{TicketRepository: memory.NewTicketRepository(), block: true}
	svc, _ := newBoardService(t, repo, clock, 20*time.Millisecond)
	admin := testfixtures.Actor("admin-a", domain.PropertyAdmin, testfixtures.PropertyA)

	_, err := svc.Board(context.Background(), admin, ViewState{})
	if !apperrors.HasCode(err, apperrors.CodeUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	if !apperrors.ToDomainError(err).Retryable {
		t.Fatalf("expected timeout to be retryable")
	}
}
