package auth

// Role is a user's authorization level within a tenant. The backend serializes
// roles as lowercase strings.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleOrgAdmin   Role = "orgadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RoleReadOnly   Role = "readonly"
)

// roleRank orders roles from least to most privileged. Unknown roles rank
// below readonly so they never satisfy a requirement.
var roleRank = map[Role]int{
	RoleReadOnly:   1,
	RoleUser:       2,
	RoleAdmin:      3,
	RoleOrgAdmin:   4,
	RoleSuperAdmin: 5,
}

// Known reports whether r is one of the defined roles.
func (r Role) Known() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants at least the privileges of required.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required] && roleRank[r] > 0
}
