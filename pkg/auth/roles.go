package auth

// Role is the closed set of roles a token can carry. Role checks compare
// variants, never raw strings; an unknown role name on the wire parses to
// nothing and grants nothing.
type Role uint8

const (
	RoleUser Role = iota
	RoleAdmin
)

const (
	roleUserName  = "USER"
	roleAdminName = "ADMIN"
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return roleAdminName
	default:
		return roleUserName
	}
}

// ParseRole maps a wire role name to a Role variant.
func ParseRole(name string) (Role, bool) {
	switch name {
	case roleUserName:
		return RoleUser, true
	case roleAdminName:
		return RoleAdmin, true
	default:
		return RoleUser, false
	}
}

// ParseRoles maps a list of wire role names, silently dropping unknown names.
func ParseRoles(names []string) []Role {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		if role, ok := ParseRole(name); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// RoleNames returns the wire names for a list of roles.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}
	return names
}
