// Package dispatch decides which resolvers may take a ticket and in what order.
package dispatch

import (
	"sort"
	"strings"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/sla"
)

// Candidate is a staff member annotated with live shift and load data.
type Candidate struct {
	Staff       domain.StaffMember
	CheckedIn   bool
	CheckedInAt time.Time
	ActiveLoad  int
}

// Selector filters and ranks candidates for a ticket.
type Selector struct {
	Policy         sla.Policy
	RequireCheckIn bool
}

// Relaxed returns a selector that keeps off-shift candidates, for manual dispatch.
func (s Selector) Relaxed() Selector {
	s.RequireCheckIn = false
	return s
}

// Ineligibility explains why a candidate was filtered out; empty means eligible.
func (s Selector) Ineligibility(t *domain.Ticket, c Candidate) string {
	switch {
	case !c.Staff.Active:
		return "inactive"
	case t.OrganizationID != "" && c.Staff.OrganizationID != t.OrganizationID:
		return "different organization"
	case !c.Staff.ServesProperty(t.PropertyID):
		return "not scoped to property"
	case !c.Staff.Capable(domain.CapResolve):
		return "role cannot resolve"
	case !s.hasSkill(t.Category, c.Staff.Skills):
		return "missing required skill"
	case s.RequireCheckIn && !c.CheckedIn:
		return "not checked in"
	}
	return ""
}

// Eligible reports whether c may be assigned t.
func (s Selector) Eligible(t *domain.Ticket, c Candidate) bool {
	return s.Ineligibility(t, c) == ""
}

// Rank returns the eligible candidates, best first: on shift, then lowest
// active load, then earliest check-in, then staff ID.
func (s Selector) Rank(t *domain.Ticket, candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if s.Eligible(t, c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CheckedIn != b.CheckedIn {
			return a.CheckedIn
		}
		if a.ActiveLoad != b.ActiveLoad {
			return a.ActiveLoad < b.ActiveLoad
		}
		if a.CheckedIn && !a.CheckedInAt.Equal(b.CheckedInAt) {
			return a.CheckedInAt.Before(b.CheckedInAt)
		}
		return a.Staff.ID < b.Staff.ID
	})
	return out
}

// Pick returns the best eligible candidate.
func (s Selector) Pick(t *domain.Ticket, candidates []Candidate) (Candidate, bool) {
	ranked := s.Rank(t, candidates)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

func (s Selector) hasSkill(category string, skills []string) bool {
	required := s.Policy.RequiredSkills(category)
	for _, have := range skills {
		have = strings.ToLower(strings.TrimSpace(have))
		for _, want := range required {
			if have == want {
				return true
			}
		}
	}
	return false
}
