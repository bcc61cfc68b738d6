package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// Closer closes a resolved ticket as the system actor.
type Closer interface {
	AutoClose(ctx context.Context, id string) (*domain.Ticket, error)
}

// AutoCloser closes resolved tickets whose grace period has elapsed.
type AutoCloser struct {
	tickets  repository.TicketRepository
	closer   Closer
	grace    time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAutoCloser builds the worker. A zero grace disables it.
func NewAutoCloser(tickets repository.TicketRepository, closer Closer, grace, interval time.Duration, logger *zap.Logger, now func() time.Time) *AutoCloser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &AutoCloser{
		tickets:  tickets,
		closer:   closer,
		grace:    grace,
		interval: interval,
		logger:   logger.Named("auto_closer"),
		now:      now,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (a *AutoCloser) Run(ctx context.Context) {
	if a.grace <= 0 {
		return
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Sweep(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("auto-close sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep closes every resolved ticket resolved before now - grace.
func (a *AutoCloser) Sweep(ctx context.Context) (int, error) {
	if a.grace <= 0 {
		return 0, nil
	}
	cutoff := a.now().Add(-a.grace)
	due, err := a.tickets.List(ctx, repository.TicketFilter{
		Statuses:       []domain.TicketStatus{domain.TicketStatusResolved},
		ResolvedBefore: &cutoff,
		OldestFirst:    true,
		Limit:          scanPage,
	})
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, t := range due {
		if _, err := a.closer.AutoClose(ctx, t.ID); err != nil {
			// reopened or closed by someone else since the listing
			if apperrors.HasCode(err, apperrors.CodeConcurrentModification) ||
				apperrors.HasCode(err, apperrors.CodeTransitionDenied) ||
				apperrors.HasCode(err, apperrors.CodeNotFound) {
				continue
			}
			return closed, err
		}
		closed++
	}
	if closed > 0 {
		a.logger.Info("auto-closed resolved tickets", zap.Int("count", closed))
	}
	return closed, nil
}
