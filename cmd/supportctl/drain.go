package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/supportsphere/helpdesk/internal/config"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/worker"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver pending audit and notification side effects once",
	Long: `drain claims one batch of outbox entries, applies them and reports
how many were delivered, scheduled for retry or given up on.`,
	RunE: runDrain,
}

var drainBatchFlag int

func init() {
	drainCmd.Flags().IntVar(&drainBatchFlag, "batch", 0, "Batch size (defaults to OUTBOX_BATCH_SIZE)")
	rootCmd.AddCommand(drainCmd)
}

func runDrain(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := s.cfg.SideEffects
	if drainBatchFlag > 0 {
		cfg.OutboxBatch = drainBatchFlag
	}
	return drainOnce(cmd.Context(), s.rt.Gateway, cfg, cmd.OutOrStdout())
}

func drainOnce(ctx context.Context, gw gateway.Gateway, cfg config.SideEffectsConfig, out io.Writer) error {
	res, err := worker.NewOutboxDrainer(gw, cfg, nil, nil).RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "delivered=%d retried=%d dead=%d\n", res.Delivered, res.Retried, res.Dead)
	return nil
}
