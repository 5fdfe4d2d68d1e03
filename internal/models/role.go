package models

import "strings"

// Role is the closed set of dashboard roles
type Role string

const (
	RoleDriver        Role = "driver"
	RoleRaceEngineer  Role = "race_engineer"
	RoleTeamPrincipal Role = "team_principal"
	RoleAdministrator Role = "administrator"
)

// Capability names an action a role may perform ("resource.action")
type Capability string

const (
	CapTeamView       Capability = "team.view"
	CapSessionsRead   Capability = "sessions.read"
	CapSessionsCreate Capability = "sessions.create"
	CapSessionsEdit   Capability = "sessions.edit"
	CapPitStopsManage Capability = "pit_stops.manage"
	CapProfileManage  Capability = "profile.manage"
	CapAuditRead      Capability = "audit.read"
	CapUsersManage    Capability = "users.manage"
)

// roleCapabilities is resolved once; handlers never compare role strings directly
var roleCapabilities = map[Role]map[Capability]bool{
	RoleDriver: {
		CapTeamView:      true,
		CapSessionsRead:  true,
		CapProfileManage: true,
	},
	RoleRaceEngineer: {
		CapTeamView:       true,
		CapSessionsRead:   true,
		CapSessionsEdit:   true,
		CapPitStopsManage: true,
		CapProfileManage:  true,
	},
	RoleTeamPrincipal: {
		CapTeamView:       true,
		CapSessionsRead:   true,
		CapSessionsCreate: true,
		CapSessionsEdit:   true,
		CapPitStopsManage: true,
		CapProfileManage:  true,
		CapAuditRead:      true,
	},
	RoleAdministrator: {
		CapTeamView:       true,
		CapSessionsRead:   true,
		CapSessionsCreate: true,
		CapSessionsEdit:   true,
		CapPitStopsManage: true,
		CapProfileManage:  true,
		CapAuditRead:      true,
		CapUsersManage:    true,
	},
}

// ParseRole maps a stored or submitted role string onto the enum
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleCapabilities[r]; !ok {
		return "", false
	}
	return r, true
}

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether the role grants the capability
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

// Capabilities returns the capabilities granted to the role in a stable order
func (r Role) Capabilities() []Capability {
	out := make([]Capability, 0, len(allCapabilities))
	for _, c := range allCapabilities {
		if r.Can(c) {
			out = append(out, c)
		}
	}
	return out
}

var allCapabilities = []Capability{
	CapTeamView,
	CapSessionsRead,
	CapSessionsCreate,
	CapSessionsEdit,
	CapPitStopsManage,
	CapProfileManage,
	CapAuditRead,
	CapUsersManage,
}
