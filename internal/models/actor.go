package models

// Role is the coarse role claim attached to an authenticated caller.
type Role string

const (
	RoleUser          Role = "User"
	RoleSupervisor    Role = "Supervisor"
	RoleAdministrator Role = "Administrator"
)

// Actor identifies the authenticated caller of a command.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// ParseRole maps a role claim to a Role, falling back to RoleUser.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdministrator, RoleSupervisor:
		return Role(raw)
	default:
		return RoleUser
	}
}
