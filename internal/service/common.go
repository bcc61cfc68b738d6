package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/facilityops/facility-service/internal/repository"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// CacheInvalidator evicts cached read models affected by a mutation.
type CacheInvalidator interface {
	InvalidatePrefix(prefix string) int
}

// TicketCachePrefix scopes every cached ticket view of a property.
func TicketCachePrefix(propertyID string) string {
	return "tickets-" + propertyID + "-"
}

// TicketCacheKey is the cache key of one dashboard tab.
func TicketCacheKey(propertyID, tab string) string {
	return TicketCachePrefix(propertyID) + tab
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// storeError maps repository failures into the API error taxonomy.
func storeError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrStaleTicket):
		return apperrors.NewConcurrentModification(resource, details)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUpstreamUnavailable("store", err)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperrors.NewUpstreamUnavailable("store", err)
}

func newID() string {
	return uuid.NewString()
}

func generateDisplayCode() string {
	return "FM-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
