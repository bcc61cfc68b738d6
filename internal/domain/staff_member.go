package domain

import "time"

// StaffMember is a resolver or administrator as seen by dispatch.
type StaffMember struct {
	ID             string
	Name           string
	Role           RoleName
	OrganizationID string
	PropertyIDs    []string
	Skills         []string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ServesProperty reports whether the member is scoped to propertyID.
func (s StaffMember) ServesProperty(propertyID string) bool {
	for _, id := range s.PropertyIDs {
		if id == propertyID {
			return true
		}
	}
	return false
}

// Capable reports whether the member's role carries capability c.
func (s StaffMember) Capable(c Capability) bool {
	role, err := ParseRole(string(s.Role))
	return err == nil && role.Can(c)
}
