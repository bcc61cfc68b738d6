package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
)

// StaffRepository is an in-process staff directory.
type StaffRepository struct {
	mu    sync.RWMutex
	staff map[string]domain.StaffMember
}

// NewStaffRepository builds a directory seeded with members.
func NewStaffRepository(members ...domain.StaffMember) *StaffRepository {
	r := &StaffRepository{staff: make(map[string]domain.StaffMember, len(members))}
	for _, m := range members {
		r.staff[m.ID] = copyStaff(m)
	}
	return r
}

var _ repository.StaffRepository = (*StaffRepository)(nil)

func (r *StaffRepository) Upsert(ctx context.Context, staff *domain.StaffMember) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[staff.ID] = copyStaff(*staff)
	return nil
}

func (r *StaffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyStaff(m)
	return &out, nil
}

func (r *StaffRepository) List(ctx context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var result []domain.StaffMember
	for _, m := range r.staff {
		if filter.OrganizationID != "" && m.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.PropertyID != nil && !m.ServesProperty(*filter.PropertyID) {
			continue
		}
		if len(filter.Roles) > 0 && !hasRole(filter.Roles, m.Role) {
			continue
		}
		if filter.Active != nil && m.Active != *filter.Active {
			continue
		}
		result = append(result, copyStaff(m))
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func hasRole(roles []domain.RoleName, role domain.RoleName) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func copyStaff(m domain.StaffMember) domain.StaffMember {
	m.PropertyIDs = append([]string(nil), m.PropertyIDs...)
	m.Skills = append([]string(nil), m.Skills...)
	return m
}
