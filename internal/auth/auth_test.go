package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository/memory"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

func newTestApp(tm *TokenManager, mw *AuthMiddleware, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(apperrors.ToDomainError(err).HTTPStatus).SendString(apperrors.ToDomainError(err).Code)
		},
	})
	handlers := append([]fiber.Handler{mw.Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.SendString(actor.ID + "|" + string(actor.Role.Name()) + "|" + actor.OrganizationID)
	})
	app.Get("/whoami", handlers...)
	return app
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	actor := domain.Actor{ID: "u-1", Role: domain.PropertyAdmin, OrganizationID: "org-1", PropertyIDs: []string{"prop-a"}}

	token, expiresAt, err := tm.GenerateToken(actor)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if time.Until(expiresAt) > 5*time.Minute {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, err := claims.Actor()
	if err != nil {
		t.Fatalf("actor failed: %v", err)
	}
	if got.ID != "u-1" || got.Role.Name() != domain.RolePropertyAdmin || len(got.PropertyIDs) != 1 {
		t.Fatalf("unexpected actor %+v", got)
	}
}

func TestParseRejectsForeignSignatureAndExpiry(t *testing.T) {
	issuer := NewTokenManager("one", 5)
	token, _, _ := issuer.GenerateToken(domain.Actor{ID: "u-1", Role: domain.Tenant})
	if _, err := NewTokenManager("two", 5).ParseToken(token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}

	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, _ := issuer.GenerateToken(domain.Actor{ID: "u-1", Role: domain.Tenant})
	if _, err := NewTokenManager("one", 5).ParseToken(stale); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestMiddlewareAuthenticates(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm, NewAuthMiddleware(tm, nil))

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	token, _, _ := tm.GenerateToken(domain.Actor{ID: "tenant-1", Role: domain.Tenant, OrganizationID: "org-1"})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	query := httptest.NewRequest(http.MethodGet, "/whoami?access_token="+token, nil)
	resp, _ = app.Test(query)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected query token to be accepted, got %d", resp.StatusCode)
	}
}

func TestMiddlewareRejectsDeactivatedStaff(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	staff := memory.NewStaffRepository(domain.StaffMember{
		ID: "staff-1", Role: domain.RoleStaff, OrganizationID: "org-1", Active: false,
	})
	app := newTestApp(tm, NewAuthMiddleware(tm, staff))

	token, _, _ := tm.GenerateToken(domain.Actor{ID: "staff-1", Role: domain.Staff, OrganizationID: "org-1"})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deactivated staff, got %d", resp.StatusCode)
	}
}

func TestRequireCapability(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm, NewAuthMiddleware(tm, nil), RequireCapability(domain.CapDispatch))

	for _, tc := range []struct {
		role domain.Role
		want int
	}{
		{domain.Tenant, http.StatusForbidden},
		{domain.Staff, http.StatusForbidden},
		{domain.PropertyAdmin, http.StatusOK},
	} {
		token, _, _ := tm.GenerateToken(domain.Actor{ID: "u", Role: tc.role, OrganizationID: "org-1"})
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, _ := app.Test(req)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.role, tc.want, resp.StatusCode)
		}
	}
}
