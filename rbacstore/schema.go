package rbacstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

var models = []any{
	(*Role)(nil),
	(*Permission)(nil),
	(*RolePermission)(nil),
	(*UserRole)(nil),
}

// CreateSchema creates the tables and lookup indexes if they do not exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*Permission)(nil), "idx_permissions_path", "path"},
		{(*Permission)(nil), "idx_permissions_status_sort", "status"},
		{(*UserRole)(nil), "idx_user_roles_role_id", "role_id"},
		{(*RolePermission)(nil), "idx_role_permissions_permission_id", "permission_id"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// Seed inserts a snapshot in one transaction.
func Seed(ctx context.Context, db *bun.DB, data SeedData) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(data.Roles) > 0 {
			if _, err := tx.NewInsert().Model(&data.Roles).Exec(ctx); err != nil {
				return fmt.Errorf("seed roles: %w", err)
			}
		}
		if len(data.Permissions) > 0 {
			if _, err := tx.NewInsert().Model(&data.Permissions).Exec(ctx); err != nil {
				return fmt.Errorf("seed permissions: %w", err)
			}
		}
		if len(data.RolePermissions) > 0 {
			if _, err := tx.NewInsert().Model(&data.RolePermissions).Exec(ctx); err != nil {
				return fmt.Errorf("seed role permissions: %w", err)
			}
		}
		if len(data.UserRoles) > 0 {
			if _, err := tx.NewInsert().Model(&data.UserRoles).Exec(ctx); err != nil {
				return fmt.Errorf("seed user roles: %w", err)
			}
		}
		return nil
	})
}
