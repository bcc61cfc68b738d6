package domain

import (
	"fmt"
	"sort"
	"strings"
)

// RoleName identifies one of the fixed platform roles.
type RoleName string

const (
	RoleTenant        RoleName = "tenant"
	RoleStaff         RoleName = "staff"
	RolePropertyAdmin RoleName = "property_admin"
	RoleOrgAdmin      RoleName = "org_admin"
	// RoleSystem is held only by in-process automation (auto-dispatch, auto-close).
	RoleSystem RoleName = "system"
)

// Capability is a single permission carried by a role.
type Capability string

const (
	CapRaiseTicket      Capability = "raise_ticket"
	CapClaim            Capability = "claim"
	CapDispatch         Capability = "dispatch"
	CapResolve          Capability = "resolve"
	CapAdminOverride    Capability = "admin_override"
	CapReopen           Capability = "reopen"
	CapClose            Capability = "close"
	CapDeleteSoft       Capability = "delete_soft"
	CapDeleteHard       Capability = "delete_hard"
	CapCheckIn          Capability = "check_in"
	CapViewProperty     Capability = "view_property"
	CapViewOrganization Capability = "view_organization"
)

var knownCapabilities = map[Capability]struct{}{
	CapRaiseTicket:      {},
	CapClaim:            {},
	CapDispatch:         {},
	CapResolve:          {},
	CapAdminOverride:    {},
	CapReopen:           {},
	CapClose:            {},
	CapDeleteSoft:       {},
	CapDeleteHard:       {},
	CapCheckIn:          {},
	CapViewProperty:     {},
	CapViewOrganization: {},
}

// Role is a member of the closed role set. The zero value has no capabilities.
type Role struct {
	name RoleName
	caps map[Capability]struct{}
}

func newRole(name RoleName, caps ...Capability) Role {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		if _, ok := knownCapabilities[c]; !ok {
			panic(fmt.Sprintf("domain: role %s declares unknown capability %q", name, c))
		}
		set[c] = struct{}{}
	}
	return Role{name: name, caps: set}
}

var (
	Tenant        = newRole(RoleTenant, CapRaiseTicket)
	Staff         = newRole(RoleStaff, CapRaiseTicket, CapClaim, CapResolve, CapCheckIn, CapViewProperty)
	PropertyAdmin = newRole(RolePropertyAdmin,
		CapRaiseTicket, CapClaim, CapDispatch, CapResolve, CapAdminOverride, CapReopen, CapClose,
		CapDeleteSoft, CapCheckIn, CapViewProperty)
	OrgAdmin = newRole(RoleOrgAdmin,
		CapRaiseTicket, CapDispatch, CapResolve, CapAdminOverride, CapReopen, CapClose,
		CapDeleteSoft, CapDeleteHard, CapViewProperty, CapViewOrganization)
	System = newRole(RoleSystem, CapDispatch, CapClose, CapViewOrganization)
)

var externalRoles = map[RoleName]Role{
	RoleTenant:        Tenant,
	RoleStaff:         Staff,
	RolePropertyAdmin: PropertyAdmin,
	RoleOrgAdmin:      OrgAdmin,
}

// ParseRole resolves a role name from external input. The system role is never accepted.
func ParseRole(raw string) (Role, error) {
	role, ok := externalRoles[RoleName(strings.ToLower(strings.TrimSpace(raw)))]
	if !ok {
		return Role{}, fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Name returns the role identifier.
func (r Role) Name() RoleName {
	return r.name
}

func (r Role) String() string {
	return string(r.name)
}

// Can reports whether the role carries capability c.
func (r Role) Can(c Capability) bool {
	_, ok := r.caps[c]
	return ok
}

// Capabilities lists the role's capabilities in a stable order.
func (r Role) Capabilities() []Capability {
	out := make([]Capability, 0, len(r.caps))
	for c := range r.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsZero reports whether the role was never resolved.
func (r Role) IsZero() bool {
	return r.name == ""
}
