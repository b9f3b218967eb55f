// Swarmd orchestrates a swarm of role-bound LLM workers through a fixed
// development pipeline: plan ingestion, phase-gated dispatch into isolated
// git workspaces, critique gating, and failure escalation.
//
// Usage:
//
//	# Execute a plan end to end
//	swarmd run plan.md
//
//	# Validate a plan without executing it
//	swarmd plan validate plan.md
//
//	# Purge expired pheromones
//	swarmd sweep
//
//	# Report contract coverage
//	swarmd coverage <contract-id>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/swarmd/internal/config"
	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

// configPath is the --config flag value; empty means the default location.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "swarmd",
	Short: "Multi-agent development pipeline orchestrator",
	Long: `swarmd drives a plan of features through a fixed multi-phase pipeline,
dispatching one role-bound worker at a time into an isolated git workspace
and recording everything it learns in a project knowledge graph.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/swarmd/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("swarmd %s (%s)\n", version, gitCommit))
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(coverageCmd)
}

// loadConfig loads configuration and builds the logger from it.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

// openStore opens the configured knowledge store backend.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.OpenSQLite(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
