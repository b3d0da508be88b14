package rbacstore

import "github.com/uptrace/bun"

// Status values shared by roles and permissions.
const (
	StatusInactive = 0
	StatusActive   = 1
)

// Role groups permissions. A super admin role implicitly holds every active
// permission, with or without explicit grants.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID           int64  `bun:"id,pk,autoincrement" json:"id"`
	Code         string `bun:"code,notnull,unique" json:"code"`
	Name         string `bun:"name,notnull" json:"name"`
	Status       int    `bun:"status,notnull" json:"status"`
	IsSuperAdmin bool   `bun:"is_super_admin,notnull" json:"is_super_admin"`
}

// Active reports whether the role takes part in permission resolution.
func (r Role) Active() bool {
	return r.Status == StatusActive
}

// Permission is a permission record. Records double as navigation entries,
// which is why they carry path, component and menu fields.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull" json:"name"`
	ChineseName   string `bun:"chinese_name" json:"chinese_name"`
	Code          string `bun:"code" json:"code"`
	Type          string `bun:"type" json:"type"`
	ParentID      *int64 `bun:"parent_id" json:"parent_id"`
	Path          string `bun:"path" json:"path"`
	Component     string `bun:"component" json:"component"`
	FilePath      string `bun:"file_path" json:"file_path"`
	PermissionKey string `bun:"permission" json:"permission"`
	Icon          string `bun:"icon" json:"icon"`
	Sort          int    `bun:"sort,notnull" json:"sort"`
	Status        int    `bun:"status,notnull" json:"status"`
}

// RolePermission grants a permission to a role.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	RoleID       int64 `bun:"role_id,pk" json:"role_id"`
	PermissionID int64 `bun:"permission_id,pk" json:"permission_id"`
}

// UserRole assigns a role to a user.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	UserID int64 `bun:"user_id,pk" json:"user_id"`
	RoleID int64 `bun:"role_id,pk" json:"role_id"`
}

// SeedData is a full snapshot of the tables, used to bootstrap databases.
type SeedData struct {
	Roles           []Role           `json:"roles"`
	Permissions     []Permission     `json:"permissions"`
	RolePermissions []RolePermission `json:"role_permissions"`
	UserRoles       []UserRole       `json:"user_roles"`
}
