package domain

import "time"

// ShiftRecord captures one check-in/check-out window of a user at a property.
// Records are closed on check-out, never deleted.
type ShiftRecord struct {
	ID           string
	UserID       string
	PropertyID   string
	CheckedIn    bool
	CheckedInAt  time.Time
	CheckedOutAt *time.Time
}

// Open reports whether the record has not been checked out yet.
func (s ShiftRecord) Open() bool {
	return s.CheckedOutAt == nil
}

// ShiftAction is the requested toggle direction.
type ShiftAction string

const (
	ShiftCheckIn  ShiftAction = "check-in"
	ShiftCheckOut ShiftAction = "check-out"
)
