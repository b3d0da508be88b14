package rbacstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

// Store runs the role and permission queries on bun.
type Store struct {
	db bun.IDB
}

// New returns a Store over db, which may be a *bun.DB or a transaction.
func New(db bun.IDB) *Store {
	return &Store{db: db}
}

// UserRoles returns the active roles assigned to userID.
func (s *Store) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	roles := make([]Role, 0)
	err := s.db.NewSelect().
		Model(&roles).
		Join("JOIN user_roles AS ur ON ur.role_id = r.id").
		Where("ur.user_id = ?", userID).
		Where("r.status = ?", StatusActive).
		OrderExpr("r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// ActivePermissions returns every active permission ordered by sort, id.
func (s *Store) ActivePermissions(ctx context.Context) ([]Permission, error) {
	perms := make([]Permission, 0)
	err := s.db.NewSelect().
		Model(&perms).
		Where("p.status = ?", StatusActive).
		OrderExpr("p.sort ASC, p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return perms, nil
}

// UserPermissions returns the active permissions granted to userID through
// active roles, ordered by sort, id. Super admin expansion is not applied
// here.
func (s *Store) UserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	granted := s.db.NewSelect().
		TableExpr("role_permissions AS rp").
		Column("rp.permission_id").
		Join("JOIN roles AS r ON r.id = rp.role_id").
		Join("JOIN user_roles AS ur ON ur.role_id = r.id").
		Where("ur.user_id = ?", userID).
		Where("r.status = ?", StatusActive)

	return s.permissionsIn(ctx, granted)
}

// RolePermissions returns the active permissions granted to the active role
// with the given code, ordered by sort, id.
func (s *Store) RolePermissions(ctx context.Context, roleCode string) ([]Permission, error) {
	granted := s.db.NewSelect().
		TableExpr("role_permissions AS rp").
		Column("rp.permission_id").
		Join("JOIN roles AS r ON r.id = rp.role_id").
		Where("r.code = ?", roleCode).
		Where("r.status = ?", StatusActive)

	return s.permissionsIn(ctx, granted)
}

func (s *Store) permissionsIn(ctx context.Context, ids *bun.SelectQuery) ([]Permission, error) {
	perms := make([]Permission, 0)
	err := s.db.NewSelect().
		Model(&perms).
		Where("p.status = ?", StatusActive).
		Where("p.id IN (?)", ids).
		OrderExpr("p.sort ASC, p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return perms, nil
}

// PermissionCodeByPath returns the code of the active permission registered
// for path. found is false when no permission guards the path.
func (s *Store) PermissionCodeByPath(ctx context.Context, path string) (code string, found bool, err error) {
	err = s.db.NewSelect().
		Model((*Permission)(nil)).
		Column("p.code").
		Where("p.status = ?", StatusActive).
		Where("p.path = ?", path).
		OrderExpr("p.id ASC").
		Limit(1).
		Scan(ctx, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

// RoleByID returns a role regardless of status.
func (s *Store) RoleByID(ctx context.Context, roleID int64) (Role, error) {
	var role Role
	err := s.db.NewSelect().Model(&role).Where("r.id = ?", roleID).Scan(ctx)
	return role, err
}

// UsersWithRole returns the ids of users holding roleID.
func (s *Store) UsersWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	ids := make([]int64, 0)
	err := s.db.NewSelect().
		Model((*UserRole)(nil)).
		Column("ur.user_id").
		Where("ur.role_id = ?", roleID).
		OrderExpr("ur.user_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AssignRole gives roleID to userID. Assigning twice is a no-op.
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.NewInsert().
		Model(&UserRole{UserID: userID, RoleID: roleID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

// RevokeRole removes roleID from userID.
func (s *Store) RevokeRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.NewDelete().
		TableExpr("user_roles").
		Where("user_id = ?", userID).
		Where("role_id = ?", roleID).
		Exec(ctx)
	return err
}

// GrantPermission grants permissionID to roleID. Granting twice is a no-op.
func (s *Store) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.db.NewInsert().
		Model(&RolePermission{RoleID: roleID, PermissionID: permissionID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}
