// Package access holds the role hierarchy and capability table used to gate
// views and routes. Authorization is enforced again by the database policies;
// these checks decide what a caller is offered.
package access

import "strings"

// Role is the profile role stored in profiles.role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

// Capability is a named permission string.
type Capability string

const (
	ViewMembers         Capability = "view_members"
	CreateAppointments  Capability = "create_appointments"
	ManageEvents        Capability = "manage_events"
	ViewReports         Capability = "view_reports"
	EditMemberBasicInfo Capability = "edit_member_basic_info"
	ViewOwnAppointments Capability = "view_own_appointments"
	RegisterForEvents   Capability = "register_for_events"
	ViewPublicEvents    Capability = "view_public_events"
	ManageUsers         Capability = "manage_users"
	ManageSettings      Capability = "manage_settings"
)

var leaderCapabilities = map[Capability]struct{}{
	ViewMembers:         {},
	CreateAppointments:  {},
	ManageEvents:        {},
	ViewReports:         {},
	EditMemberBasicInfo: {},
}

var memberCapabilities = map[Capability]struct{}{
	ViewOwnAppointments: {},
	RegisterForEvents:   {},
	ViewPublicEvents:    {},
}

// ParseRole normalises a stored role value.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleLeader, RoleMember:
		return r, true
	default:
		return "", false
	}
}

// Roles lists the valid roles in ascending privilege.
func Roles() []Role { return []Role{RoleMember, RoleLeader, RoleAdmin} }

func (r Role) IsAdmin() bool { return r == RoleAdmin }

func (r Role) IsLeader() bool { return r == RoleLeader || r == RoleAdmin }

func (r Role) IsMember() bool { return r == RoleMember || r.IsLeader() }

// AtLeast reports whether r is min or a role above it.
func (r Role) AtLeast(min Role) bool {
	switch min {
	case RoleAdmin:
		return r.IsAdmin()
	case RoleLeader:
		return r.IsLeader()
	case RoleMember:
		return r.IsMember()
	default:
		return false
	}
}

// HasPermission is a pure lookup; admin holds every capability and an empty role holds none.
func HasPermission(role Role, capability Capability) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleLeader:
		_, ok := leaderCapabilities[capability]
		return ok
	case RoleMember:
		_, ok := memberCapabilities[capability]
		return ok
	default:
		return false
	}
}
