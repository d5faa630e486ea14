package domain

import "slices"

// Role names as configured in the IDM.
const (
	RoleSuperAdmin    = "super_admin"
	RoleAdmin         = "admin"
	RoleContactTracer = "contact_tracer"
)

// roleRanks orders roles from most to least privileged.
var roleRanks = []string{RoleSuperAdmin, RoleAdmin, RoleContactTracer}

// Roles lists every assignable role, most privileged first.
func Roles() []string {
	return slices.Clone(roleRanks)
}

// ValidRole reports whether name is an assignable role.
func ValidRole(name string) bool {
	return slices.Contains(roleRanks, name)
}

// RoleRank is the position of name in the ranking, lower meaning more
// privileged. Unknown roles rank last.
func RoleRank(name string) int {
	if i := slices.Index(roleRanks, name); i >= 0 {
		return i
	}
	return len(roleRanks)
}

// HighestRole picks the most privileged known role. It returns "" when
// roles holds no known role.
func HighestRole(roles []string) string {
	best := ""
	for _, r := range roles {
		if !ValidRole(r) {
			continue
		}
		if best == "" || RoleRank(r) < RoleRank(best) {
			best = r
		}
	}
	return best
}
