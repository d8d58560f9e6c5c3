package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/bootstrap"
	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/observability"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "supportctl",
	Short: "SupportSphere helpdesk administration tool",
	Long: `supportctl operates on the helpdesk data layer directly.

It reads the same environment as the API server (see .env) and can apply
migrations, drain the side-effect outbox, create accounts and inspect tickets.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "supportctl %s\n", rootCmd.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// session bundles what every data command needs.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	rt     *bootstrap.Runtime
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt, err := bootstrap.New(ctx, cfg, logger, nil)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, rt: rt}, nil
}

func (s *session) Close() {
	s.rt.Close()
	_ = s.logger.Sync()
}
