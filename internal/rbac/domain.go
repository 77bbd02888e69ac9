package rbac

import "time"

// Role groups a set of permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// RoleWithPermissions carries a role and its permission scopes.
type RoleWithPermissions struct {
	Role
	Permissions []string
}
