package dispatch

import (
	"testing"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/sla"
)

var shiftStart = time.Date(2024, time.April, 1, 7, 0, 0, 0, time.UTC)

func member(id string, role domain.RoleName, skills ...string) domain.StaffMember {
	return domain.StaffMember{
		ID:             id,
		Role:           role,
		OrganizationID: "org",
		PropertyIDs:    []string{"p1"},
		Skills:         skills,
		Active:         true,
	}
}

func leak() *domain.Ticket {
	return &domain.Ticket{ID: "t1", OrganizationID: "org", PropertyID: "p1", Category: "Plumbing"}
}

func TestIneligibilityReasons(t *testing.T) {
	selector := Selector{Policy: sla.DefaultPolicy(), RequireCheckIn: true}
	onShift := func(m domain.StaffMember) Candidate {
		return Candidate{Staff: m, CheckedIn: true, CheckedInAt: shiftStart}
	}

	inactive := member("a", domain.RoleStaff, "plumbing")
	inactive.Active = false
	elsewhere := member("b", domain.RoleStaff, "plumbing")
	elsewhere.PropertyIDs = []string{"p2"}
	foreign := member("c", domain.RoleStaff, "plumbing")
	foreign.OrganizationID = "other"

	cases := []struct {
		name string
		c    Candidate
		want string
	}{
		{"eligible", onShift(member("ok", domain.RoleStaff, "PLUMBING")), ""},
		{"inactive", onShift(inactive), "inactive"},
		{"other property", onShift(elsewhere), "not scoped to property"},
		{"other organization", onShift(foreign), "different organization"},
		{"tenant", onShift(member("d", domain.RoleTenant, "plumbing")), "role cannot resolve"},
		{"wrong skill", onShift(member("e", domain.RoleStaff, "electrical")), "missing required skill"},
		{"off shift", Candidate{Staff: member("f", domain.RoleStaff, "plumbing")}, "not checked in"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := selector.Ineligibility(leak(), tc.c); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	if !selector.Relaxed().Eligible(leak(), Candidate{Staff: member("f", domain.RoleStaff, "plumbing")}) {
		t.Fatalf("expected relaxed selector to accept off-shift resolver")
	}
}

func TestRankOrdering(t *testing.T) {
	selector := Selector{Policy: sla.DefaultPolicy()}
	candidates := []Candidate{
		{Staff: member("zed", domain.RoleStaff, "plumbing"), CheckedIn: true, CheckedInAt: shiftStart, ActiveLoad: 1},
		{Staff: member("amy", domain.RoleStaff, "plumbing"), CheckedIn: true, CheckedInAt: shiftStart.Add(time.Hour), ActiveLoad: 0},
		{Staff: member("bob", domain.RoleStaff, "plumbing"), CheckedIn: true, CheckedInAt: shiftStart, ActiveLoad: 0},
		{Staff: member("off", domain.RoleStaff, "plumbing"), ActiveLoad: 0},
		{Staff: member("cat", domain.RoleStaff, "plumbing"), CheckedIn: true, CheckedInAt: shiftStart, ActiveLoad: 1},
	}

	ranked := selector.Rank(leak(), candidates)
	want := []string{"bob", "amy", "cat", "zed", "off"}
	if len(ranked) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(ranked))
	}
	for i, id := range want {
		if ranked[i].Staff.ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, ranked[i].Staff.ID)
		}
	}
}

func TestPickUsesCategorySkillMap(t *testing.T) {
	policy, err := sla.ParsePolicy([]byte(`
categories:
  hvac:
    skills: [heating, cooling]
`))
	if err != nil {
		t.Fatalf("parse policy: %v", err)
	}
	selector := Selector{Policy: policy, RequireCheckIn: true}
	ticket := leak()
	ticket.Category = "hvac"

	candidates := []Candidate{
		{Staff: member("plumber", domain.RoleStaff, "plumbing"), CheckedIn: true},
		{Staff: member("cooler", domain.RoleStaff, "cooling"), CheckedIn: true},
	}
	picked, ok := selector.Pick(ticket, candidates)
	if !ok || picked.Staff.ID != "cooler" {
		t.Fatalf("expected cooler, got %+v (ok=%v)", picked, ok)
	}

	if _, ok := selector.Pick(ticket, candidates[:1]); ok {
		t.Fatalf("expected no eligible resolver")
	}
}
