// Package permission resolves user permissions from an RBAC store and caches
// every derived answer in Redis.
//
// Each query has its own key and lifetime:
//
//	userPermissions:{userId}            effective codes
//	rolePermissions:{roleCode}          codes granted to a role
//	dynamicRoutes:{userId}              permission records for navigation
//	userPermissionInfo:{userId}         roles, admin flag and codes together
//	permissionCheck:{userId}:{code}     single check result
//	pathPermission:{userId}:{path}      path check result
//
// A user holding a role flagged as super admin sees every active permission.
// Negative answers are cached like positive ones, but a user with no active
// role is never cached so a transient empty result does not stick.
//
// Nothing is invalidated automatically when the RBAC store changes outside
// this package. Code that edits role assignments must call ClearUserCache,
// or use AssignRole and RevokeRole, which do it.
package permission
