package permission

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/rbacstore"
)

func (s *Service) resolveUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	perms, hit, err := cache.ReadThrough(ctx, s.kv, UserPermissionsKey(userID), s.ttl.UserPermissions,
		func(ctx context.Context) ([]string, bool, error) {
			records, cacheable, err := s.loadUserRecords(ctx, userID, true)
			if err != nil {
				return nil, false, err
			}
			codes := permissionCodes(records)
			return codes, cacheable && len(codes) > 0, nil
		})
	if err != nil {
		return nil, err
	}
	s.trace(ctx, UserPermissionsKey(userID), hit)
	return perms, nil
}

func (s *Service) resolveRolePermissions(ctx context.Context, roleCode string) ([]string, error) {
	perms, hit, err := cache.ReadThrough(ctx, s.kv, RolePermissionsKey(roleCode), s.ttl.RolePermissions,
		func(ctx context.Context) ([]string, bool, error) {
			records, err := s.source.RolePermissions(ctx, roleCode)
			if err != nil {
				return nil, false, err
			}
			codes := permissionCodes(records)
			return codes, len(codes) > 0, nil
		})
	if err != nil {
		return nil, err
	}
	s.trace(ctx, RolePermissionsKey(roleCode), hit)
	return perms, nil
}

func (s *Service) resolveDynamicRoutes(ctx context.Context, userID int64) ([]Route, error) {
	routes, hit, err := cache.ReadThrough(ctx, s.kv, DynamicRoutesKey(userID), s.ttl.DynamicRoutes,
		func(ctx context.Context) ([]Route, bool, error) {
			records, cacheable, err := s.loadUserRecords(ctx, userID, false)
			if err != nil {
				return nil, false, err
			}
			routes := make([]Route, 0, len(records))
			for _, p := range records {
				routes = append(routes, routeFrom(p))
			}
			return routes, cacheable && len(routes) > 0, nil
		})
	if err != nil {
		return nil, err
	}
	s.trace(ctx, DynamicRoutesKey(userID), hit)
	return routes, nil
}

// loadUserRecords returns the permission records a user holds. Super admins
// get every active permission, restricted to those with a code when
// codedOnly is set. A user with no active role yields an empty, uncacheable
// result. Callers never cache an empty permission list either.
func (s *Service) loadUserRecords(ctx context.Context, userID int64, codedOnly bool) ([]rbacstore.Permission, bool, error) {
	roles, err := s.source.UserRoles(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if len(roles) == 0 {
		return []rbacstore.Permission{}, false, nil
	}

	if !hasSuperAdmin(roles) {
		records, err := s.source.UserPermissions(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return records, true, nil
	}

	all, err := s.source.ActivePermissions(ctx)
	if err != nil {
		return nil, false, err
	}
	if !codedOnly {
		return all, true, nil
	}
	coded := make([]rbacstore.Permission, 0, len(all))
	for _, p := range all {
		if p.Code != "" {
			coded = append(coded, p)
		}
	}
	return coded, true, nil
}

func (s *Service) resolveCheck(ctx context.Context, userID int64, code string) (bool, error) {
	allowed, hit, err := cache.ReadThrough(ctx, s.kv, PermissionCheckKey(userID, code), s.ttl.PermissionCheck,
		func(ctx context.Context) (bool, bool, error) {
			perms, err := s.resolveUserPermissions(ctx, userID)
			if err != nil {
				return false, false, err
			}
			for _, p := range perms {
				if p == code {
					return true, true, nil
				}
			}
			return false, true, nil
		})
	if err != nil {
		return false, err
	}
	s.trace(ctx, PermissionCheckKey(userID, code), hit)
	return allowed, nil
}

func (s *Service) resolvePathCheck(ctx context.Context, userID int64, path string) (bool, error) {
	allowed, hit, err := cache.ReadThrough(ctx, s.kv, PathPermissionKey(userID, path), s.ttl.PathPermission,
		func(ctx context.Context) (bool, bool, error) {
			code, found, err := s.resolvePathCode(ctx, path)
			if err != nil {
				return false, false, err
			}
			if !found {
				return false, true, nil
			}
			allowed, err := s.resolveCheck(ctx, userID, code)
			if err != nil {
				return false, false, err
			}
			return allowed, true, nil
		})
	if err != nil {
		return false, err
	}
	s.trace(ctx, PathPermissionKey(userID, path), hit)
	return allowed, nil
}

// resolvePathCode maps a path to the code guarding it. found is false when
// no active permission with a code is registered for the path.
func (s *Service) resolvePathCode(ctx context.Context, path string) (string, bool, error) {
	if s.paths == nil {
		return s.lookupPathCode(ctx, path)
	}

	code, err := cache.GetOrFetch(ctx, s.paths, pathCodePrefix+path, func(ctx context.Context) (string, error) {
		code, found, err := s.lookupPathCode(ctx, path)
		if err != nil {
			return "", err
		}
		if !found {
			return "", cache.ErrNotFound
		}
		return code, nil
	})
	if errors.Is(err, cache.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

// lookupPathCode treats a permission with an empty code as no guard.
func (s *Service) lookupPathCode(ctx context.Context, path string) (string, bool, error) {
	code, found, err := s.source.PermissionCodeByPath(ctx, path)
	if err != nil || !found || code == "" {
		return "", false, err
	}
	return code, true, nil
}

func (s *Service) resolveInfo(ctx context.Context, userID int64) (Info, error) {
	info, hit, err := cache.ReadThrough(ctx, s.kv, UserPermissionInfoKey(userID), s.ttl.UserPermissionInfo,
		func(ctx context.Context) (Info, bool, error) {
			roles, err := s.source.UserRoles(ctx, userID)
			if err != nil {
				return Info{}, false, err
			}
			if len(roles) == 0 {
				return emptyInfo(userID), false, nil
			}
			perms, err := s.resolveUserPermissions(ctx, userID)
			if err != nil {
				return Info{}, false, err
			}
			return Info{
				UserID:      userID,
				Permissions: perms,
				Roles:       roleCodes(roles),
				IsAdmin:     hasSuperAdmin(roles),
			}, true, nil
		})
	if err != nil {
		return Info{}, err
	}
	s.trace(ctx, UserPermissionInfoKey(userID), hit)
	return info, nil
}

func (s *Service) trace(ctx context.Context, key string, hit bool) {
	s.log(ctx).Debug("permission cache lookup", slog.String("key", key), slog.Bool("hit", hit))
}
