package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
)

// TicketHistoryRepository is an append-only in-process audit log.
type TicketHistoryRepository struct {
	mu      sync.RWMutex
	entries []domain.TicketHistory
}

// NewTicketHistoryRepository builds an empty audit log.
func NewTicketHistoryRepository() *TicketHistoryRepository {
	return &TicketHistoryRepository{}
}

var _ repository.TicketHistoryRepository = (*TicketHistoryRepository)(nil)

func (r *TicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *history)
	return nil
}

func (r *TicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(func(h domain.TicketHistory) bool { return h.TicketID == ticketID }), nil
}

func (r *TicketHistoryRepository) ListRange(ctx context.Context, rng repository.HistoryRange) ([]domain.TicketHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(func(h domain.TicketHistory) bool {
		return contains(rng.PropertyIDs, h.PropertyID) && !h.CreatedAt.Before(rng.From) && h.CreatedAt.Before(rng.To)
	}), nil
}

func (r *TicketHistoryRepository) collect(keep func(domain.TicketHistory) bool) []domain.TicketHistory {
	r.mu.RLock()
	var result []domain.TicketHistory
	for _, h := range r.entries {
		if keep(h) {
			result = append(result, h)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}
