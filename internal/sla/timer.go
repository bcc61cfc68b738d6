// Package sla tracks paused and elapsed service time per ticket and decides breaches.
package sla

import (
	"time"

	"github.com/facilityops/facility-service/internal/domain"
)

// Pause opens a pause window unless one is already open.
func Pause(t *domain.Ticket, now time.Time) bool {
	if t.SLAPaused {
		return false
	}
	started := now
	t.SLAPaused = true
	t.SLAPauseStartedAt = &started
	return true
}

// Resume closes the open pause window and folds it into the accumulated total.
func Resume(t *domain.Ticket, now time.Time) bool {
	if !t.SLAPaused {
		return false
	}
	if t.SLAPauseStartedAt != nil {
		if d := now.Sub(*t.SLAPauseStartedAt); d > 0 {
			t.SLAAccumulatedPauseSeconds += int64(d / time.Second)
		}
	}
	t.SLAPaused = false
	t.SLAPauseStartedAt = nil
	return true
}

// PausedDuration is the accumulated pause plus the in-flight window measured at `at`.
func PausedDuration(t *domain.Ticket, at time.Time) time.Duration {
	total := time.Duration(t.SLAAccumulatedPauseSeconds) * time.Second
	if t.SLAPaused && t.SLAPauseStartedAt != nil {
		if d := at.Sub(*t.SLAPauseStartedAt); d > 0 {
			total += d
		}
	}
	return total
}

// ServiceTime is the elapsed time since creation with every pause interval removed.
func ServiceTime(t *domain.Ticket, now time.Time) time.Duration {
	elapsed := now.Sub(t.CreatedAt) - PausedDuration(t, now)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Resolution is the measured time to resolve a ticket.
type Resolution struct {
	Duration time.Duration
	// Anomaly is set when stored timestamps produced a negative duration that was clamped.
	Anomaly bool
}

// ResolutionTime measures resolved_at - created_at - pauses. ok is false for unresolved tickets.
func ResolutionTime(t *domain.Ticket) (Resolution, bool) {
	if t.ResolvedAt == nil {
		return Resolution{}, false
	}
	d := t.ResolvedAt.Sub(t.CreatedAt) - PausedDuration(t, *t.ResolvedAt)
	if d < 0 {
		return Resolution{Anomaly: true}, true
	}
	return Resolution{Duration: d}, true
}
