package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/observability"
	"github.com/supportsphere/helpdesk/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations to POSTGRES_DSN",
	RunE:  runMigrate,
}

var migrateListFlag bool

func init() {
	migrateCmd.Flags().BoolVar(&migrateListFlag, "list", false, "List embedded migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateListFlag {
		return listMigrations(cmd.OutOrStdout())
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("migrate requires POSTGRES_DSN")
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	return applyMigrations(cmd.Context(), cfg.Postgres, logger, cmd.OutOrStdout())
}

func applyMigrations(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger, out io.Writer) error {
	pool, err := persistence.OpenPool(ctx, cfg, "supportctl", logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
		return err
	}
	fmt.Fprintln(out, "migrations applied")
	return nil
}

func listMigrations(out io.Writer) error {
	names, err := persistence.MigrationNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}
