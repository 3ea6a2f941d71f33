package authroles

// Package authroles maps identity provider group claims to OERMS roles for
// providers that do not emit a roles claim directly.

import (
	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps groups by simple string membership rules.
// A user may hold several roles; each configured group contributes its role.
type StaticRoleMapper struct {
	AdminGroup   string
	TeacherGroup string
	StudentGroup string
}

// Map returns the OERMS roles derived from the given provider groups.
// Unknown groups contribute nothing; an empty result means no role.
func (m StaticRoleMapper) Map(groups []string) []string {
	var roles []string
	for _, g := range groups {
		switch {
		case m.AdminGroup != "" && g == m.AdminGroup:
			roles = appendUnique(roles, string(domainauth.RoleAdmin))
		case m.TeacherGroup != "" && g == m.TeacherGroup:
			roles = appendUnique(roles, string(domainauth.RoleTeacher))
		case m.StudentGroup != "" && g == m.StudentGroup:
			roles = appendUnique(roles, string(domainauth.RoleStudent))
		}
	}
	return roles
}

func appendUnique(roles []string, role string) []string {
	for _, r := range roles {
		if r == role {
			return roles
		}
	}
	return append(roles, role)
}
