package permission

import (
	"context"
	"fmt"
)

// AssignRole gives the user a role and clears the user's cache.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if s.writer == nil {
		return ErrNoWriter
	}
	if err := s.writer.AssignRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("assign role %d to user %d: %w", roleID, userID, err)
	}
	s.ClearUserCache(ctx, userID)
	return nil
}

// RevokeRole removes a role from the user and clears the user's cache.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID int64) error {
	if s.writer == nil {
		return ErrNoWriter
	}
	if err := s.writer.RevokeRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("revoke role %d from user %d: %w", roleID, userID, err)
	}
	s.ClearUserCache(ctx, userID)
	return nil
}

// GrantPermission adds a permission to a role, then clears the role entry and
// the cache of every user holding the role.
func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	if s.writer == nil {
		return ErrNoWriter
	}
	if err := s.writer.GrantPermission(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("grant permission %d to role %d: %w", permissionID, roleID, err)
	}
	return s.invalidateRole(ctx, roleID)
}

func (s *Service) invalidateRole(ctx context.Context, roleID int64) error {
	role, err := s.writer.RoleByID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("load role %d: %w", roleID, err)
	}
	s.ClearRoleCache(ctx, role.Code)

	users, err := s.writer.UsersWithRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("list users with role %d: %w", roleID, err)
	}
	for _, userID := range users {
		s.ClearUserCache(ctx, userID)
	}
	return nil
}
