package permission

import (
	"context"
	"errors"
	"log/slog"
)

// ClearUserCache removes every entry derived from the user's roles and
// returns the number of keys deleted. Callers that change a user's role
// assignment must call it.
func (s *Service) ClearUserCache(ctx context.Context, userID int64) int64 {
	var errs []error

	deleted, err := s.kv.Del(ctx, UserPermissionsKey(userID), DynamicRoutesKey(userID), UserPermissionInfoKey(userID))
	if err != nil {
		errs = append(errs, err)
	}

	for _, pattern := range userPatterns(userID) {
		n, err := s.kv.DelPattern(ctx, pattern)
		if err != nil {
			errs = append(errs, err)
		}
		deleted += n
	}

	if err := errors.Join(errs...); err != nil {
		s.log(ctx).Error("failed to clear user cache", slog.Int64("userId", userID), slog.Any("error", err))
	} else {
		s.log(ctx).Info("cleared user cache", slog.Int64("userId", userID), slog.Int64("deleted", deleted))
	}
	return deleted
}

// ClearRoleCache removes the cached code list of a role.
func (s *Service) ClearRoleCache(ctx context.Context, roleCode string) int64 {
	deleted, err := s.kv.Del(ctx, RolePermissionsKey(roleCode))
	if err != nil {
		s.log(ctx).Error("failed to clear role cache", slog.String("role", roleCode), slog.Any("error", err))
		return 0
	}
	s.log(ctx).Info("cleared role cache", slog.String("role", roleCode), slog.Int64("deleted", deleted))
	return deleted
}

// ClearAllCache removes every permission cache entry.
func (s *Service) ClearAllCache(ctx context.Context) int64 {
	var (
		deleted int64
		errs    []error
	)
	for _, prefix := range Prefixes {
		n, err := s.kv.DelPattern(ctx, prefix+"*")
		if err != nil {
			errs = append(errs, err)
		}
		deleted += n
	}
	if s.paths != nil {
		if err := s.paths.DeleteByPrefix(ctx, pathCodePrefix); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.log(ctx).Error("failed to clear permission cache", slog.Any("error", err))
	} else {
		s.log(ctx).Info("cleared permission cache", slog.Int64("deleted", deleted))
	}
	return deleted
}

// GetCacheStats counts cached entries per category. A scan failure yields
// zero counts.
func (s *Service) GetCacheStats(ctx context.Context) Stats {
	counts := make(map[string]int, len(Prefixes))
	for _, prefix := range Prefixes {
		keys, err := s.kv.Keys(ctx, prefix+"*")
		if err != nil {
			s.log(ctx).Error("failed to read cache stats", slog.String("prefix", prefix), slog.Any("error", err))
			return Stats{}
		}
		counts[prefix] = len(keys)
	}

	return Stats{
		UserPermissions:    counts[PrefixUserPermissions],
		RolePermissions:    counts[PrefixRolePermissions],
		DynamicRoutes:      counts[PrefixDynamicRoutes],
		UserPermissionInfo: counts[PrefixUserPermissionInfo],
		PermissionChecks:   counts[PrefixPermissionCheck],
		PathPermissions:    counts[PrefixPathPermission],
	}
}
