// Package memory provides in-process implementations of the repository
// interfaces. They back the service when no database is configured and are the
// default store in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
)

// TicketRepository keeps tickets in a map guarded by a mutex, which also
// serializes the compare-and-swap in UpdateIfUnchanged.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewTicketRepository builds an empty store.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: make(map[string]*domain.Ticket)}
}

var _ repository.TicketRepository = (*TicketRepository)(nil)

func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok || t.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return t.Clone(), nil
}

func (r *TicketRepository) UpdateIfUnchanged(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tickets[ticket.ID]
	if !ok || current.DeletedAt != nil {
		return repository.ErrNotFound
	}
	if current.Status != status || current.Version != version {
		return repository.ErrStaleTicket
	}
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *TicketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var result []domain.Ticket
	for _, t := range r.tickets {
		if matches(t, filter) {
			result = append(result, *t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if filter.OldestFirst {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (r *TicketRepository) CountActiveByAssignee(ctx context.Context, assigneeIDs []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(assigneeIDs))
	for _, id := range assigneeIDs {
		wanted[id] = struct{}{}
	}
	counts := make(map[string]int, len(assigneeIDs))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tickets {
		if t.DeletedAt != nil || t.AssigneeID == nil || !isActive(t.Status) {
			continue
		}
		if _, ok := wanted[*t.AssigneeID]; ok {
			counts[*t.AssigneeID]++
		}
	}
	return counts, nil
}

func (r *TicketRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok || t.DeletedAt != nil {
		return repository.ErrNotFound
	}
	deleted := at
	t.DeletedAt = &deleted
	t.UpdatedAt = at
	return nil
}

func (r *TicketRepository) HardDelete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.tickets, id)
	return nil
}

func matches(t *domain.Ticket, f repository.TicketFilter) bool {
	if t.DeletedAt != nil {
		return false
	}
	if f.OrganizationID != "" && t.OrganizationID != f.OrganizationID {
		return false
	}
	if len(f.PropertyIDs) > 0 && !contains(f.PropertyIDs, t.PropertyID) {
		return false
	}
	if f.CreatorID != nil && t.CreatorID != *f.CreatorID {
		return false
	}
	if f.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *f.AssigneeID) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == t.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.ResolvedBefore != nil && (t.ResolvedAt == nil || !t.ResolvedAt.Before(*f.ResolvedBefore)) {
		return false
	}
	return true
}

func isActive(s domain.TicketStatus) bool {
	for _, a := range domain.ActiveStatuses {
		if a == s {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
