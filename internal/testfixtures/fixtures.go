// Package testfixtures holds deterministic building blocks shared by service and
// handler tests: a controllable clock, a canonical organization with two
// properties, and pre-wired in-memory stores.
package testfixtures

import (
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository/memory"
)

const (
	OrgID       = "org-1"
	PropertyA   = "prop-a"
	PropertyB   = "prop-b"
	OtherOrgID  = "org-2"
	PropertyOut = "prop-z"
)

// ReferenceTime is the shared starting instant for deterministic tests.
func ReferenceTime() time.Time {
	return time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)
}

// Actor builds an actor in the canonical organization.
func Actor(id string, role domain.Role, properties ...string) domain.Actor {
	return domain.Actor{ID: id, Role: role, OrganizationID: OrgID, PropertyIDs: properties}
}

// Plumber, Electrician and Generalist are resolvers at PropertyA.
func Plumber() domain.StaffMember {
	return staff("staff-plumber", "Pat Plumber", domain.RoleStaff, []string{PropertyA}, "plumbing")
}

func Electrician() domain.StaffMember {
	return staff("staff-electric", "Eli Sparks", domain.RoleStaff, []string{PropertyA}, "electrical")
}

func Generalist() domain.StaffMember {
	return staff("staff-general", "Gen Hands", domain.RoleStaff, []string{PropertyA, PropertyB}, "plumbing", "electrical", "general")
}

// Manager is a property admin at PropertyA who can also resolve.
func Manager() domain.StaffMember {
	return staff("admin-a", "Ada Admin", domain.RolePropertyAdmin, []string{PropertyA}, "general")
}

// Stores bundles the in-memory repositories used by most tests.
type Stores struct {
	Tickets       *memory.TicketRepository
	Staff         *memory.StaffRepository
	Shifts        *memory.ShiftRepository
	Notifications *memory.NotificationRepository
	History       *memory.TicketHistoryRepository
}

// NewStores returns empty repositories with the staff directory seeded.
func NewStores(members ...domain.StaffMember) Stores {
	if len(members) == 0 {
		members = []domain.StaffMember{Plumber(), Electrician(), Generalist(), Manager()}
	}
	return Stores{
		Tickets:       memory.NewTicketRepository(),
		Staff:         memory.NewStaffRepository(members...),
		Shifts:        memory.NewShiftRepository(),
		Notifications: memory.NewNotificationRepository(),
		History:       memory.NewTicketHistoryRepository(),
	}
}

func staff(id, name string, role domain.RoleName, properties []string, skills ...string) domain.StaffMember {
	at := ReferenceTime().Add(-30 * 24 * time.Hour)
	return domain.StaffMember{
		ID:             id,
		Name:           name,
		Role:           role,
		OrganizationID: OrgID,
		PropertyIDs:    properties,
		Skills:         skills,
		Active:         true,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}
