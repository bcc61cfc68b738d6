// Package dashboard builds role-scoped ticket boards from cached property snapshots.
package dashboard

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/facilityops/facility-service/internal/domain"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// Tab selects a status bucket of the board.
type Tab string

const (
	TabActive     Tab = "active"
	TabUnassigned Tab = "unassigned"
	TabMine       Tab = "mine"
	TabDone       Tab = "done"
	TabAll        Tab = "all"
)

const (
	defaultPageSize = 25
	maxPage         = 1000
)

// Statuses lists the statuses a tab shows. Mine shows the caller's active work.
func (t Tab) Statuses() []domain.TicketStatus {
	switch t {
	case TabUnassigned:
		return []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusWaitlist}
	case TabActive, TabMine:
		return domain.ActiveStatuses
	case TabDone:
		return []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusClosed}
	default:
		return domain.AllStatuses
	}
}

// cacheBucket is the cached snapshot a tab reads from. Mine is filtered from active.
func (t Tab) cacheBucket() Tab {
	if t == TabMine {
		return TabActive
	}
	return t
}

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	switch t {
	case TabActive, TabUnassigned, TabMine, TabDone, TabAll:
		return true
	}
	return false
}

// ViewState is the deep-linkable navigation state of a board. The URL query is
// its only representation; handlers parse it and links encode it back.
type ViewState struct {
	Tab        Tab
	Statuses   []domain.TicketStatus
	Priority   domain.TicketPriority
	PropertyID string
	Page       int
}

// ParseViewState reads a view from query parameters, applying defaults.
func ParseViewState(q url.Values) (ViewState, error) {
	view := ViewState{
		Tab:        Tab(strings.ToLower(strings.TrimSpace(q.Get("tab")))),
		Priority:   domain.TicketPriority(strings.ToLower(strings.TrimSpace(q.Get("priority")))),
		PropertyID: strings.TrimSpace(q.Get("property_id")),
		Page:       1,
	}
	if view.Tab == "" {
		view.Tab = TabActive
	}

	fields := map[string]any{}
	if !view.Tab.Valid() {
		fields["tab"] = "must be one of active, unassigned, mine, done, all"
	}
	if view.Priority != "" && !view.Priority.Valid() {
		fields["priority"] = "must be one of low, medium, high, critical"
	}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			status := domain.TicketStatus(strings.ToLower(strings.TrimSpace(part)))
			if status == "" {
				continue
			}
			if !status.Valid() {
				fields["status"] = "unknown status " + string(status)
				continue
			}
			view.Statuses = append(view.Statuses, status)
		}
	}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 || page > maxPage {
			fields["page"] = "must be a positive integer"
		} else {
			view.Page = page
		}
	}
	if len(fields) > 0 {
		return ViewState{}, apperrors.NewValidationError("invalid dashboard view", fields)
	}
	return view, nil
}

// Query encodes the view so that ParseViewState(v.Query()) round-trips. Defaults are omitted.
func (v ViewState) Query() url.Values {
	q := url.Values{}
	if v.Tab != "" && v.Tab != TabActive {
		q.Set("tab", string(v.Tab))
	}
	if len(v.Statuses) > 0 {
		parts := make([]string, len(v.Statuses))
		for i, s := range v.Statuses {
			parts[i] = string(s)
		}
		q.Set("status", strings.Join(parts, ","))
	}
	if v.Priority != "" {
		q.Set("priority", string(v.Priority))
	}
	if v.PropertyID != "" {
		q.Set("property_id", v.PropertyID)
	}
	if v.Page > 1 {
		q.Set("page", strconv.Itoa(v.Page))
	}
	return q
}

// Encode renders the view as a query string.
func (v ViewState) Encode() string {
	return v.Query().Encode()
}

// WithPage returns a copy pointing at another page.
func (v ViewState) WithPage(page int) ViewState {
	v.Page = page
	v.Statuses = append([]domain.TicketStatus(nil), v.Statuses...)
	return v
}
