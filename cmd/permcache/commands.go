package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-permission-cache/permission"
	"github.com/goliatone/go-permission-cache/rbacstore"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <user-id> <code>...",
		Short: "Check permission codes for a user",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			perms := a.container.Permissions()
			if len(args) == 2 {
				fmt.Fprintln(cmd.OutOrStdout(), perms.CheckPermission(ctx, userID, args[1]))
				return nil
			}
			return printJSON(cmd.OutOrStdout(), perms.CheckPermissions(ctx, userID, args[1:]))
		},
	}
}

func (a *app) checkPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-path <user-id> <path>",
		Short: "Check whether a user may access a route path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			fmt.Fprintln(cmd.OutOrStdout(), a.container.Permissions().CheckPathPermission(ctx, userID, args[1]))
			return nil
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <user-id>",
		Short: "Show the roles and permission codes of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return printJSON(cmd.OutOrStdout(), a.container.Permissions().GetUserPermissionInfo(ctx, userID))
		},
	}
}

func (a *app) routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes <user-id>",
		Short: "List the dynamic routes of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return printJSON(cmd.OutOrStdout(), a.container.Permissions().GetDynamicRoutes(ctx, userID))
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count cached permission entries by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			stats := a.container.Permissions().GetCacheStats(ctx)
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tENTRIES")
			fmt.Fprintf(w, "userPermissions\t%d\n", stats.UserPermissions)
			fmt.Fprintf(w, "rolePermissions\t%d\n", stats.RolePermissions)
			fmt.Fprintf(w, "dynamicRoutes\t%d\n", stats.DynamicRoutes)
			fmt.Fprintf(w, "userPermissionInfo\t%d\n", stats.UserPermissionInfo)
			fmt.Fprintf(w, "permissionCheck\t%d\n", stats.PermissionChecks)
			fmt.Fprintf(w, "pathPermission\t%d\n", stats.PathPermissions)
			fmt.Fprintf(w, "total\t%d\n", stats.Total())
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func (a *app) clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Invalidate cached entries",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "user <user-id>",
			Short: "Drop every cached entry of a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := parseID("user id", args[0])
				if err != nil {
					return err
				}
				ctx, cancel := commandContext(cmd)
				defer cancel()
				return printDeleted(cmd, a.container.Permissions().ClearUserCache(ctx, userID))
			},
		},
		&cobra.Command{
			Use:   "role <role-code>",
			Short: "Drop the cached permission list of a role",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := commandContext(cmd)
				defer cancel()
				return printDeleted(cmd, a.container.Permissions().ClearRoleCache(ctx, args[0]))
			},
		},
		&cobra.Command{
			Use:   "all",
			Short: "Drop every permission cache entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, cancel := commandContext(cmd)
				defer cancel()
				return printDeleted(cmd, a.container.Permissions().ClearAllCache(ctx))
			},
		},
		a.clearCenterCmd(),
	)
	return cmd
}

func (a *app) clearCenterCmd() *cobra.Command {
	var (
		userID int64
		role   string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "center [center]",
		Short: "Drop cached center pages",
		Long:  "Drop cached center pages. With --role only that role's list is dropped, with --user and --role only that user's entry.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			centers := a.container.Centers()
			if all {
				return printDeleted(cmd, centers.ClearAll(ctx))
			}
			if len(args) == 0 {
				return fmt.Errorf("a center name or --all is required")
			}
			return printDeleted(cmd, centers.ClearCenterCache(ctx, args[0], userID, role))
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Only the entry of this user (requires --role)")
	cmd.Flags().StringVar(&role, "role", "", "Only the entry of this role")
	cmd.Flags().BoolVar(&all, "all", false, "Every center")
	return cmd
}

// mutation is an RBAC write that also invalidates the affected caches.
type mutation func(svc *permission.Service, ctx context.Context, first, second int64) error

func (a *app) roleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Change role assignments and invalidate the affected caches",
	}

	mutate := func(use, short string, op mutation, names [2]string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				first, err := parseID(names[0], args[0])
				if err != nil {
					return err
				}
				second, err := parseID(names[1], args[1])
				if err != nil {
					return err
				}
				ctx, cancel := commandContext(cmd)
				defer cancel()
				return op(a.container.Permissions(), ctx, first, second)
			},
		}
	}

	cmd.AddCommand(
		mutate("assign <user-id> <role-id>", "Assign a role to a user",
			(*permission.Service).AssignRole, [2]string{"user id", "role id"}),
		mutate("revoke <user-id> <role-id>", "Revoke a role from a user",
			(*permission.Service).RevokeRole, [2]string{"user id", "role id"}),
		mutate("grant <role-id> <permission-id>", "Grant a permission to a role",
			(*permission.Service).GrantPermission, [2]string{"role id", "permission id"}),
	)
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the RBAC tables",
		Long:  "Create the RBAC tables and indexes when missing, optionally loading a JSON snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			db := a.container.DB()
			logger := a.container.Logger()

			logger.Info("Creating RBAC schema")
			if err := rbacstore.CreateSchema(ctx, db); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}

			if seedFile == "" {
				return nil
			}

			raw, err := os.ReadFile(seedFile)
			if err != nil {
				return fmt.Errorf("failed to read seed file: %w", err)
			}
			var seed rbacstore.SeedData
			if err := json.Unmarshal(raw, &seed); err != nil {
				return fmt.Errorf("failed to decode seed file: %w", err)
			}
			if err := rbacstore.Seed(ctx, db, seed); err != nil {
				return err
			}
			logger.Info("Seeded RBAC data",
				slog.String("file", seedFile),
				slog.Int("roles", len(seed.Roles)),
				slog.Int("permissions", len(seed.Permissions)))
			return nil
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed", "", "JSON snapshot of roles and permissions to insert")
	return cmd
}

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Verify the Redis and database connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			var failed bool

			if err := a.container.KV().EnsureConnected(ctx); err != nil {
				fmt.Fprintf(out, "redis\tunavailable\t%v\n", err)
				failed = true
			} else {
				fmt.Fprintln(out, "redis\tok")
			}

			if err := a.container.DB().PingContext(ctx); err != nil {
				fmt.Fprintf(out, "database\tunavailable\t%v\n", err)
				failed = true
			} else {
				fmt.Fprintln(out, "database\tok")
			}

			if failed {
				return fmt.Errorf("health check failed")
			}
			return nil
		},
	}
}

func printDeleted(cmd *cobra.Command, deleted int64) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", deleted)
	return err
}
