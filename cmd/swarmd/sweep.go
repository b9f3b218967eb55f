package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/telemetry"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired pheromones from the store",
	Long: `Remove every pheromone past its expiry. Run this periodically (cron
or a systemd timer) to keep stale signals out of context priming.

Examples:
  swarmd sweep
  swarmd sweep --config /etc/swarmd/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	tel, err := telemetry.New(cmd.Context(), &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background()) //nolint:errcheck

	metrics, err := telemetry.NewMetrics(tel.Meter("swarmd"))
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	swept, err := pheromone.NewEngine(s, logger).Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep pheromones: %w", err)
	}
	metrics.SweptPheromones.Add(cmd.Context(), int64(swept))
	fmt.Printf("Swept %d expired pheromone(s)\n", swept)
	return nil
}
