package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/api/http/handlers"
	"github.com/facilityops/facility-service/internal/auth"
	"github.com/facilityops/facility-service/internal/cache"
	"github.com/facilityops/facility-service/internal/dashboard"
	"github.com/facilityops/facility-service/internal/dispatch"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/observability"
	"github.com/facilityops/facility-service/internal/realtime"
	"github.com/facilityops/facility-service/internal/service"
	"github.com/facilityops/facility-service/internal/sla"
	"github.com/facilityops/facility-service/internal/testfixtures"
	"github.com/facilityops/facility-service/internal/worker"
)

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	stores  testfixtures.Stores
	clock   *testfixtures.Clock
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	stores := testfixtures.NewStores()
	policy := sla.DefaultPolicy()
	dispatcher := events.NewInMemoryDispatcher(nil)
	hub := realtime.NewHub()
	metrics := observability.NewMetrics()

	ticketCache, err := cache.New[[]domain.Ticket](cache.Options{TTL: time.Minute, Now: clock.NowFunc()})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(ticketCache.Close)

	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  stores.Tickets,
		StaffRepo:   stores.Staff,
		ShiftRepo:   stores.Shifts,
		HistoryRepo: stores.History,
		Dispatcher:  dispatcher,
		Cache:       ticketCache,
		Selector:    dispatch.Selector{Policy: policy, RequireCheckIn: true},
		Now:         clock.NowFunc(),
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  stores.Tickets,
		HistoryRepo: stores.History,
		Dispatcher:  dispatcher,
		Cache:       ticketCache,
		Assignments: assignments,
		Policy:      policy,
		AutoAssign:  true,
		Now:         clock.NowFunc(),
	})
	shifts := service.NewShiftService(service.ShiftDependencies{
		ShiftRepo:  stores.Shifts,
		Dispatcher: dispatcher,
		Now:        clock.NowFunc(),
	})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: stores.Notifications,
		StaffRepo:        stores.Staff,
		Publisher:        hub,
		Debounce:         time.Minute,
		Now:              clock.NowFunc(),
	})
	worker.StartNotificationWorker(dispatcher, notifications, assignments)
	metrics.Subscribe(dispatcher, events.EventTicketCreated, events.EventTicketAssigned)

	boards := dashboard.NewService(dashboard.Dependencies{
		TicketRepo: stores.Tickets,
		Cache:      ticketCache,
		Policy:     policy,
		PageSize:   2,
		Now:        clock.NowFunc(),
	})

	tokens := auth.NewTokenManager("test-secret", 15)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop(), metrics)})
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("facility-service", "test", nil, nil),
		Tickets:        handlers.NewTicketsHandler(tickets, assignments),
		Shifts:         handlers.NewShiftsHandler(shifts),
		Notifications:  handlers.NewNotificationsHandler(notifications, hub, nil),
		Dashboard:      handlers.NewDashboardHandler(boards),
		Exports:        handlers.NewExportsHandler(service.NewExportService(stores.History, 0)),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, stores.Staff),
	})
	return &testServer{app: app, tokens: tokens, stores: stores, clock: clock, metrics: metrics}
}

func (s *testServer) token(t *testing.T, actor domain.Actor) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(actor)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, actor *domain.Actor, method, path string, body any) (*nethttp.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if actor != nil {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(t, *actor))
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	decoded := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, decoded
}

func tenantActor() domain.Actor {
	return testfixtures.Actor("tenant-1", domain.Tenant, testfixtures.PropertyA)
}

func plumberActor() domain.Actor {
	return testfixtures.Actor(testfixtures.Plumber().ID, domain.Staff, testfixtures.PropertyA)
}

func adminActor() domain.Actor {
	return testfixtures.Actor(testfixtures.Manager().ID, domain.PropertyAdmin, testfixtures.PropertyA)
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func (s *testServer) createTicket(t *testing.T, title string) map[string]any {
	t.Helper()
	tenant := tenantActor()
	resp, body := s.do(t, &tenant, nethttp.MethodPost, "/api/v1/tickets", map[string]any{
		"property_id": testfixtures.PropertyA,
		"title":       title,
		"category":    "plumbing",
		"priority":    "high",
	})
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", resp.StatusCode, body)
	}
	return data(body)
}

func TestCreateAutoAssignsCheckedInResolver(t *testing.T) {
	s := newTestServer(t)
	plumber := plumberActor()

	resp, body := s.do(t, &plumber, nethttp.MethodPost, "/api/v1/shifts", map[string]any{
		"property_id": testfixtures.PropertyA,
		"action":      "check-in",
	})
	if resp.StatusCode != nethttp.StatusOK || data(body)["is_checked_in"] != true {
		t.Fatalf("expected check-in to succeed, got %d: %v", resp.StatusCode, body)
	}

	ticket := s.createTicket(t, "Burst pipe")
	if ticket["status"] != string(domain.TicketStatusAssigned) || ticket["assignee_id"] != plumber.ID {
		t.Fatalf("expected assignment to %s, got %v", plumber.ID, ticket)
	}

	resp, body = s.do(t, &plumber, nethttp.MethodGet, "/api/v1/notifications", nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	page := data(body)
	items, _ := page["items"].([]any)
	if len(items) != 1 || page["unread_count"] != float64(1) {
		t.Fatalf("expected one unread assignment notification, got %v", page)
	}
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	ticket := s.createTicket(t, "Flickering light")
	if ticket["status"] != string(domain.TicketStatusWaitlist) {
		t.Fatalf("expected waitlist without checked-in resolvers, got %v", ticket["status"])
	}

	plumber := plumberActor()
	resp, body := s.do(t, &plumber, nethttp.MethodPatch, "/api/v1/tickets/"+ticket["id"].(string), map[string]any{
		"status": "resolved",
	})
	if resp.StatusCode != nethttp.StatusConflict || errorCode(body) != "TRANSITION_DENIED" {
		t.Fatalf("expected 409 TRANSITION_DENIED, got %d: %v", resp.StatusCode, body)
	}
	e := body["error"].(map[string]any)
	if e["retryable"] != false {
		t.Fatalf("expected non-retryable error, got %v", e)
	}
	details, _ := e["details"].(map[string]any)
	if details["from"] != "waitlist" || details["to"] != "resolved" {
		t.Fatalf("expected transition details, got %v", details)
	}

	resp, body = s.do(t, nil, nethttp.MethodGet, "/api/v1/tickets/"+ticket["id"].(string), nil)
	if resp.StatusCode != nethttp.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
		t.Fatalf("expected 401, got %d: %v", resp.StatusCode, body)
	}

	tenant := tenantActor()
	resp, body = s.do(t, &tenant, nethttp.MethodGet, "/api/v1/nowhere", nil)
	if resp.StatusCode != nethttp.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("expected 404 envelope, got %d: %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, &tenant, nethttp.MethodGet, "/api/v1/tickets/"+ticket["id"].(string)+"/candidates", nil)
	if resp.StatusCode != nethttp.StatusForbidden || errorCode(body) != "PERMISSION_DENIED" {
		t.Fatalf("expected tenant candidate lookup to be forbidden, got %d: %v", resp.StatusCode, body)
	}
}

func TestTicketDetailAndDispatch(t *testing.T) {
	s := newTestServer(t)
	ticket := s.createTicket(t, "Blocked drain")
	id := ticket["id"].(string)
	admin := adminActor()

	resp, body := s.do(t, &admin, nethttp.MethodGet, "/api/v1/tickets/"+id+"/candidates", nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	candidates, _ := body["data"].([]any)
	if len(candidates) == 0 {
		t.Fatalf("expected ranked candidates")
	}

	resp, body = s.do(t, &admin, nethttp.MethodPatch, "/api/v1/tickets/"+id, map[string]any{
		"assignee_id": testfixtures.Generalist().ID,
	})
	if resp.StatusCode != nethttp.StatusOK || data(body)["assignee_id"] != testfixtures.Generalist().ID {
		t.Fatalf("expected manual dispatch, got %d: %v", resp.StatusCode, body)
	}

	s.clock.Advance(30 * time.Minute)
	tenant := tenantActor()
	resp, body = s.do(t, &tenant, nethttp.MethodGet, "/api/v1/tickets/"+id, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	detail := data(body)
	slaBody, _ := detail["sla"].(map[string]any)
	if slaBody["service_time_seconds"] != float64(1800) || slaBody["breached"] != false {
		t.Fatalf("expected 30m of service time, got %v", slaBody)
	}

	resp, body = s.do(t, &tenant, nethttp.MethodGet, "/api/v1/tickets/"+id+"/history", nil)
	history, _ := body["data"].([]any)
	if resp.StatusCode != nethttp.StatusOK || len(history) != 3 {
		t.Fatalf("expected created, status and assignee entries, got %d: %v", resp.StatusCode, body)
	}
}

func TestDashboardPaginatesWithDeepLinks(t *testing.T) {
	s := newTestServer(t)
	for _, title := range []string{"One", "Two", "Three"} {
		s.createTicket(t, title)
		s.clock.Advance(time.Minute)
	}
	admin := adminActor()

	resp, body := s.do(t, &admin, nethttp.MethodGet, "/api/v1/dashboard?tab=unassigned", nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	board := data(body)
	rows, _ := board["rows"].([]any)
	if len(rows) != 2 || board["total"] != float64(3) {
		t.Fatalf("expected first page of 2 out of 3, got %v", board)
	}
	next, _ := board["next_view"].(string)
	if !strings.Contains(next, "page=2") || !strings.Contains(next, "tab=unassigned") {
		t.Fatalf("expected next view link, got %q", next)
	}

	resp, body = s.do(t, &admin, nethttp.MethodGet, "/api/v1/dashboard?"+next, nil)
	board = data(body)
	rows, _ = board["rows"].([]any)
	if resp.StatusCode != nethttp.StatusOK || len(rows) != 1 || board["next_view"] != nil {
		t.Fatalf("expected last page with one row, got %v", board)
	}

	resp, body = s.do(t, &admin, nethttp.MethodGet, "/api/v1/dashboard?tab=later", nil)
	if resp.StatusCode != nethttp.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("expected invalid tab to fail validation, got %d: %v", resp.StatusCode, body)
	}
}

func TestHistoryExportCSV(t *testing.T) {
	s := newTestServer(t)
	start := s.clock.Now()
	s.createTicket(t, "Broken window")

	admin := adminActor()
	path := "/api/v1/exports/history?format=csv&from=" + start.Format(time.RFC3339) +
		"&to=" + start.Add(time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest(nethttp.MethodGet, path, nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(t, admin))
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if resp.StatusCode != nethttp.StatusOK || len(lines) != 2 {
		t.Fatalf("expected header + one row, got %d: %s", resp.StatusCode, raw)
	}
	if !strings.HasPrefix(lines[0], "id,ticket_id,property_id") {
		t.Fatalf("unexpected header %q", lines[0])
	}

	plumber := plumberActor()
	resp, _ = s.do(t, &plumber, nethttp.MethodGet, path, nil)
	if resp.StatusCode != nethttp.StatusForbidden {
		t.Fatalf("expected staff export to be forbidden, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, nil, nethttp.MethodGet, "/health/ready", nil)
	deps, _ := body["dependencies"].(map[string]any)
	if resp.StatusCode != nethttp.StatusOK || deps["postgres"] != "disabled" || deps["redis"] != "disabled" {
		t.Fatalf("expected ready with disabled stores, got %d: %v", resp.StatusCode, body)
	}

	s.createTicket(t, "Noisy fan")
	resp, body = s.do(t, nil, nethttp.MethodGet, "/internal/metrics", nil)
	evts, _ := body["events"].(map[string]any)
	if resp.StatusCode != nethttp.StatusOK || evts[string(events.EventTicketCreated)] != float64(1) {
		t.Fatalf("expected created event counted, got %v", body)
	}
}
