package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
)

// NotificationRepository is an in-process inbox. A single mutex makes the
// dedup check and insert atomic.
type NotificationRepository struct {
	mu    sync.Mutex
	items []domain.Notification
}

// NewNotificationRepository builds an empty inbox store.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

var _ repository.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) CreateUnlessUnread(ctx context.Context, n *domain.Notification, since time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := n.DedupKey()
	for _, existing := range r.items {
		if existing.IsRead || existing.DedupKey() != key {
			continue
		}
		if !existing.CreatedAt.Before(since) {
			return false, nil
		}
	}
	stored := *n
	stored.IsRead = false
	stored.ReadAt = nil
	r.items = append(r.items, stored)
	return true, nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	var result []domain.Notification
	for _, n := range r.items {
		if n.RecipientID == recipientID {
			result = append(result, n)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return paginate(result, limit, offset), nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID, id string, at time.Time) (*domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		n := &r.items[i]
		if n.ID != id || n.RecipientID != recipientID {
			continue
		}
		if !n.IsRead {
			readAt := at
			n.IsRead = true
			n.ReadAt = &readAt
		}
		out := *n
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for i := range r.items {
		n := &r.items[i]
		if n.RecipientID == recipientID && !n.IsRead {
			readAt := at
			n.IsRead = true
			n.ReadAt = &readAt
			updated++
		}
	}
	return updated, nil
}
