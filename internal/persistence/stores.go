package persistence

import (
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
	"github.com/facilityops/facility-service/internal/repository/memory"
)

// Stores is the full set of repositories the service runs on.
type Stores struct {
	Tickets       repository.TicketRepository
	Staff         repository.StaffRepository
	Shifts        repository.ShiftRepository
	Notifications repository.NotificationRepository
	History       repository.TicketHistoryRepository
	Durable       bool
}

// OpenStores returns Postgres-backed repositories when pg has a pool and
// in-process ones otherwise. seed populates the in-process staff directory;
// it is ignored for Postgres, whose directory is managed with facilityctl.
func OpenStores(pg *Postgres, seed []domain.StaffMember) Stores {
	if pg.Enabled() {
		return Stores{
			Tickets:       repository.NewTicketRepository(pg.Pool),
			Staff:         repository.NewStaffRepository(pg.Pool),
			Shifts:        repository.NewShiftRepository(pg.Pool),
			Notifications: repository.NewNotificationRepository(pg.Pool),
			History:       repository.NewTicketHistoryRepository(pg.Pool),
			Durable:       true,
		}
	}
	return Stores{
		Tickets:       memory.NewTicketRepository(),
		Staff:         memory.NewStaffRepository(seed...),
		Shifts:        memory.NewShiftRepository(),
		Notifications: memory.NewNotificationRepository(),
		History:       memory.NewTicketHistoryRepository(),
	}
}
