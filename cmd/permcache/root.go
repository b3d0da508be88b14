package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-permission-cache/config"
	"github.com/goliatone/go-permission-cache/pkg/di"
)

const commandTimeout = 30 * time.Second

// app carries state shared by every command of one invocation.
type app struct {
	configPath string
	container  *di.Container
}

// run executes the command tree with args and closes the container
// whatever the outcome.
func (a *app) run(ctx context.Context, out, errOut io.Writer, args []string) (err error) {
	root := a.rootCmd()
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)

	defer func() {
		if cerr := a.close(ctx); err == nil {
			err = cerr
		}
	}()
	return root.ExecuteContext(ctx)
}

// rootCmd builds the command tree. Every subcommand gets a container built
// from --config and the environment.
func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "permcache",
		Short:         "Inspect and maintain the permission cache",
		Long:          `Resolve permissions through the Redis backed cache, inspect cached entries and invalidate them after RBAC changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a config file (default ./permcache.yaml when present)")

	root.AddCommand(
		a.checkCmd(),
		a.checkPathCmd(),
		a.infoCmd(),
		a.routesCmd(),
		a.statsCmd(),
		a.clearCmd(),
		a.roleCmd(),
		a.migrateCmd(),
		a.healthCmd(),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	logger, err := cfg.Log.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}
	a.container = container
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close(ctx)
	a.container = nil
	return err
}

// commandContext bounds a single command run.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, commandTimeout)
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
