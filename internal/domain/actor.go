package domain

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID             string
	Role           Role
	OrganizationID string
	PropertyIDs    []string
}

// SystemActor is used by automated dispatch and grace-period closing.
func SystemActor() Actor {
	return Actor{ID: "system", Role: System}
}

// Can reports whether the actor's role carries capability c.
func (a Actor) Can(c Capability) bool {
	return a.Role.Can(c)
}

// InProperty reports whether the actor is scoped to propertyID.
func (a Actor) InProperty(propertyID string) bool {
	if a.Role.Can(CapViewOrganization) {
		return true
	}
	for _, id := range a.PropertyIDs {
		if id == propertyID {
			return true
		}
	}
	return false
}

// CanAccessTicket applies organization, property and ownership scoping.
func (a Actor) CanAccessTicket(t *Ticket) bool {
	if t == nil {
		return false
	}
	if a.Role.Name() == RoleSystem {
		return true
	}
	if a.OrganizationID != "" && t.OrganizationID != "" && a.OrganizationID != t.OrganizationID {
		return false
	}
	if a.Role.Name() == RoleTenant {
		return t.CreatorID == a.ID
	}
	if t.CreatorID == a.ID {
		return true
	}
	return a.InProperty(t.PropertyID)
}
