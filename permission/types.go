package permission

import (
	"context"

	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/rbacstore"
)

// Info aggregates what a profile or bootstrap response needs about a user.
type Info struct {
	UserID      int64    `json:"user_id"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
	IsAdmin     bool     `json:"is_admin"`
}

// Route is a navigation entry derived from a permission record.
type Route struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ChineseName string `json:"chinese_name"`
	Code        string `json:"code"`
	Type        string `json:"type"`
	ParentID    *int64 `json:"parent_id"`
	Path        string `json:"path"`
	Component   string `json:"component"`
	FilePath    string `json:"file_path"`
	Permission  string `json:"permission"`
	Icon        string `json:"icon"`
	Sort        int    `json:"sort"`
	Status      int    `json:"status"`
}

// Stats counts cached entries per category.
type Stats struct {
	UserPermissions    int `json:"user_permissions"`
	RolePermissions    int `json:"role_permissions"`
	DynamicRoutes      int `json:"dynamic_routes"`
	UserPermissionInfo int `json:"user_permission_info"`
	PermissionChecks   int `json:"permission_checks"`
	PathPermissions    int `json:"path_permissions"`
}

// Total sums every category.
func (s Stats) Total() int {
	return s.UserPermissions + s.RolePermissions + s.DynamicRoutes +
		s.UserPermissionInfo + s.PermissionChecks + s.PathPermissions
}

// Source is the relational source of truth.
type Source interface {
	UserRoles(ctx context.Context, userID int64) ([]rbacstore.Role, error)
	ActivePermissions(ctx context.Context) ([]rbacstore.Permission, error)
	UserPermissions(ctx context.Context, userID int64) ([]rbacstore.Permission, error)
	RolePermissions(ctx context.Context, roleCode string) ([]rbacstore.Permission, error)
	PermissionCodeByPath(ctx context.Context, path string) (string, bool, error)
}

// Writer mutates role assignments and grants.
type Writer interface {
	AssignRole(ctx context.Context, userID, roleID int64) error
	RevokeRole(ctx context.Context, userID, roleID int64) error
	GrantPermission(ctx context.Context, roleID, permissionID int64) error
	UsersWithRole(ctx context.Context, roleID int64) ([]int64, error)
	RoleByID(ctx context.Context, roleID int64) (rbacstore.Role, error)
}

// Backend is the part of the KV service the permission cache needs.
type Backend interface {
	cache.Store
	cache.KeyScanner
}

func routeFrom(p rbacstore.Permission) Route {
	return Route{
		ID:          p.ID,
		Name:        p.Name,
		ChineseName: p.ChineseName,
		Code:        p.Code,
		Type:        p.Type,
		ParentID:    p.ParentID,
		Path:        p.Path,
		Component:   p.Component,
		FilePath:    p.FilePath,
		Permission:  p.PermissionKey,
		Icon:        p.Icon,
		Sort:        p.Sort,
		Status:      p.Status,
	}
}

// permissionCodes returns the distinct non-empty codes in input order.
func permissionCodes(perms []rbacstore.Permission) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if p.Code == "" {
			continue
		}
		if _, dup := seen[p.Code]; dup {
			continue
		}
		seen[p.Code] = struct{}{}
		out = append(out, p.Code)
	}
	return out
}

func roleCodes(roles []rbacstore.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Code)
	}
	return out
}

func hasSuperAdmin(roles []rbacstore.Role) bool {
	for _, r := range roles {
		if r.IsSuperAdmin {
			return true
		}
	}
	return false
}
