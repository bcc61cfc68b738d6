package dto

import (
	"time"

	"github.com/facilityops/facility-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	PropertyID  string                `json:"property_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest is a partial update; omitted fields are unchanged.
type UpdateTicketRequest struct {
	Status      *domain.TicketStatus `json:"status"`
	AssigneeID  *string              `json:"assignee_id"`
	Reason      string               `json:"reason"`
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID                  string                `json:"id"`
	DisplayCode         string                `json:"display_code"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	Category            string                `json:"category"`
	Priority            domain.TicketPriority `json:"priority"`
	Status              domain.TicketStatus   `json:"status"`
	StatusReason        string                `json:"status_reason,omitempty"`
	PropertyID          string                `json:"property_id"`
	OrganizationID      string                `json:"organization_id"`
	CreatorID           string                `json:"creator_id"`
	AssigneeID          *string               `json:"assignee_id"`
	RaisedByRole        domain.RoleName       `json:"raised_by_role"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
	WorkStartedAt       *time.Time            `json:"work_started_at"`
	ResolvedAt          *time.Time            `json:"resolved_at"`
	SLAPaused           bool                  `json:"sla_paused"`
	AccumulatedPauseSec int64                 `json:"sla_accumulated_pause_seconds"`
}

// SLAResponse summarizes service-time accounting.
type SLAResponse struct {
	ThresholdSeconds   int64 `json:"threshold_seconds"`
	ServiceTimeSeconds int64 `json:"service_time_seconds"`
	RemainingSeconds   int64 `json:"remaining_seconds"`
	Breached           bool  `json:"breached"`
	Paused             bool  `json:"paused"`
}

// TicketDetailResponse adds derived read-side data.
type TicketDetailResponse struct {
	TicketResponse
	SLA                SLAResponse           `json:"sla"`
	AllowedTransitions []domain.TicketStatus `json:"allowed_transitions"`
}

// CandidateResponse is one ranked resolver for manual dispatch.
type CandidateResponse struct {
	StaffID     string     `json:"staff_id"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	Skills      []string   `json:"skills"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	ActiveLoad  int        `json:"active_load"`
	Recommended bool       `json:"recommended"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          string                  `json:"id"`
	TicketID    string                  `json:"ticket_id"`
	PropertyID  string                  `json:"property_id"`
	ChangedBy   string                  `json:"changed_by"`
	ChangedRole domain.RoleName         `json:"changed_role"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value,omitempty"`
	NewValue    map[string]any          `json:"new_value,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}
