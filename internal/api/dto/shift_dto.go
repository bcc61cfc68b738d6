package dto

import (
	"time"

	"github.com/facilityops/facility-service/internal/domain"
)

// ShiftToggleRequest payload.
type ShiftToggleRequest struct {
	PropertyID string             `json:"property_id"`
	Action     domain.ShiftAction `json:"action"`
}

// ShiftResponse reports the caller's shift state.
type ShiftResponse struct {
	IsCheckedIn  bool       `json:"is_checked_in"`
	Message      string     `json:"message"`
	PropertyID   string     `json:"property_id,omitempty"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
}
