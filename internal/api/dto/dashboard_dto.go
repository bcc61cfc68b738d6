package dto

import (
	"time"

	"github.com/facilityops/facility-service/internal/domain"
)

// BoardRow is one ticket on a dashboard board.
type BoardRow struct {
	TicketResponse
	Breached         bool  `json:"breached"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// BoardResponse is a dashboard page.
type BoardResponse struct {
	View        string                      `json:"view"`
	NextView    string                      `json:"next_view,omitempty"`
	Rows        []BoardRow                  `json:"rows"`
	Counts      map[domain.TicketStatus]int `json:"counts"`
	Total       int                         `json:"total"`
	Breached    int                         `json:"breached"`
	Stale       bool                        `json:"stale"`
	GeneratedAt time.Time                   `json:"generated_at"`
}
