package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
)

// ShiftRepository stores shift records; the mutex enforces one open record per
// (user, property).
type ShiftRepository struct {
	mu      sync.RWMutex
	records []domain.ShiftRecord
}

// NewShiftRepository builds an empty store.
func NewShiftRepository() *ShiftRepository {
	return &ShiftRepository{}
}

var _ repository.ShiftRepository = (*ShiftRepository)(nil)

func (r *ShiftRepository) Open(ctx context.Context, record *domain.ShiftRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openIndex(record.UserID, record.PropertyID) >= 0 {
		return repository.ErrShiftAlreadyOpen
	}
	record.CheckedIn = true
	record.CheckedOutAt = nil
	r.records = append(r.records, *record)
	return nil
}

func (r *ShiftRepository) CloseOpen(ctx context.Context, userID, propertyID string, at time.Time) (*domain.ShiftRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.openIndex(userID, propertyID)
	if idx < 0 {
		return nil, repository.ErrNoOpenShift
	}
	out := at
	r.records[idx].CheckedIn = false
	r.records[idx].CheckedOutAt = &out
	closed := r.records[idx]
	return &closed, nil
}

func (r *ShiftRepository) GetOpen(ctx context.Context, userID, propertyID string) (*domain.ShiftRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.openIndex(userID, propertyID)
	if idx < 0 {
		return nil, repository.ErrNotFound
	}
	record := r.records[idx]
	return &record, nil
}

func (r *ShiftRepository) ListOpen(ctx context.Context, propertyID string) ([]domain.ShiftRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var result []domain.ShiftRecord
	for _, record := range r.records {
		if record.PropertyID == propertyID && record.Open() {
			result = append(result, record)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].CheckedInAt.Before(result[j].CheckedInAt) })
	return result, nil
}

// History returns every record for the pair, oldest first.
func (r *ShiftRepository) History(userID, propertyID string) []domain.ShiftRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.ShiftRecord
	for _, record := range r.records {
		if record.UserID == userID && record.PropertyID == propertyID {
			result = append(result, record)
		}
	}
	return result
}

func (r *ShiftRepository) openIndex(userID, propertyID string) int {
	for i, record := range r.records {
		if record.UserID == userID && record.PropertyID == propertyID && record.Open() {
			return i
		}
	}
	return -1
}
