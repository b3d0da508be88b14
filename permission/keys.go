package permission

import (
	"time"

	"github.com/goliatone/go-permission-cache/cache"
)

// Key prefixes. External cache tooling reads these, so they must stay stable.
const (
	PrefixUserPermissions    = "userPermissions:"
	PrefixRolePermissions    = "rolePermissions:"
	PrefixDynamicRoutes      = "dynamicRoutes:"
	PrefixUserPermissionInfo = "userPermissionInfo:"
	PrefixPermissionCheck    = "permissionCheck:"
	PrefixPathPermission     = "pathPermission:"
)

// Prefixes lists every prefix owned by the permission cache.
var Prefixes = []string{
	PrefixUserPermissions,
	PrefixRolePermissions,
	PrefixDynamicRoutes,
	PrefixUserPermissionInfo,
	PrefixPermissionCheck,
	PrefixPathPermission,
}

// pathCodePrefix namespaces the in-process path to code memo.
const pathCodePrefix = "pathCode:"

// TTLTable holds the lifetime of each cached category.
type TTLTable struct {
	UserPermissions    time.Duration `mapstructure:"user_permissions"`
	RolePermissions    time.Duration `mapstructure:"role_permissions"`
	DynamicRoutes      time.Duration `mapstructure:"dynamic_routes"`
	UserPermissionInfo time.Duration `mapstructure:"user_permission_info"`
	PermissionCheck    time.Duration `mapstructure:"permission_check"`
	PathPermission     time.Duration `mapstructure:"path_permission"`
}

// DefaultTTLTable returns the standard lifetimes.
func DefaultTTLTable() TTLTable {
	return TTLTable{
		UserPermissions:    30 * time.Minute,
		RolePermissions:    time.Hour,
		DynamicRoutes:      30 * time.Minute,
		UserPermissionInfo: 30 * time.Minute,
		PermissionCheck:    10 * time.Minute,
		PathPermission:     10 * time.Minute,
	}
}

// withDefaults fills zero entries from DefaultTTLTable.
func (t TTLTable) withDefaults() TTLTable {
	d := DefaultTTLTable()
	if t.UserPermissions <= 0 {
		t.UserPermissions = d.UserPermissions
	}
	if t.RolePermissions <= 0 {
		t.RolePermissions = d.RolePermissions
	}
	if t.DynamicRoutes <= 0 {
		t.DynamicRoutes = d.DynamicRoutes
	}
	if t.UserPermissionInfo <= 0 {
		t.UserPermissionInfo = d.UserPermissionInfo
	}
	if t.PermissionCheck <= 0 {
		t.PermissionCheck = d.PermissionCheck
	}
	if t.PathPermission <= 0 {
		t.PathPermission = d.PathPermission
	}
	return t
}

var keys = cache.NewDefaultKeySerializer()

// UserPermissionsKey is "userPermissions:{userID}".
func UserPermissionsKey(userID int64) string {
	return keys.SerializeKey(PrefixUserPermissions, userID)
}

// RolePermissionsKey is "rolePermissions:{roleCode}".
func RolePermissionsKey(roleCode string) string {
	return keys.SerializeKey(PrefixRolePermissions, roleCode)
}

// DynamicRoutesKey is "dynamicRoutes:{userID}".
func DynamicRoutesKey(userID int64) string {
	return keys.SerializeKey(PrefixDynamicRoutes, userID)
}

// UserPermissionInfoKey is "userPermissionInfo:{userID}".
func UserPermissionInfoKey(userID int64) string {
	return keys.SerializeKey(PrefixUserPermissionInfo, userID)
}

// PermissionCheckKey is "permissionCheck:{userID}:{code}".
func PermissionCheckKey(userID int64, code string) string {
	return keys.SerializeKey(PrefixPermissionCheck, userID, code)
}

// PathPermissionKey is "pathPermission:{userID}:{path}".
func PathPermissionKey(userID int64, path string) string {
	return keys.SerializeKey(PrefixPathPermission, userID, path)
}

// userPatterns returns the scan patterns covering a user's per code and per
// path entries.
func userPatterns(userID int64) []string {
	return []string{
		keys.SerializeKey(PrefixPermissionCheck, userID, "*"),
		keys.SerializeKey(PrefixPathPermission, userID, "*"),
	}
}
