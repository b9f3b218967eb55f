// Package config provides configuration loading for swarmd.
//
// Configuration is read from a YAML file, then overridden by SWARMD_*
// environment variables, then backfilled with defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/swarmd/internal/logging"
	"github.com/fyrsmithlabs/swarmd/internal/telemetry"
)

// Config holds the complete swarmd configuration.
type Config struct {
	Logging      logging.Config     `koanf:"logging"`
	Telemetry    telemetry.Config   `koanf:"telemetry"`
	Store        StoreConfig        `koanf:"store"`
	Workspace    WorkspaceConfig    `koanf:"workspace"`
	LLM          LLMConfig          `koanf:"llm"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Pheromone    PheromoneConfig    `koanf:"pheromone"`
}

// StoreConfig selects and locates the knowledge store backend.
type StoreConfig struct {
	// Driver is memory or sqlite.
	Driver string `koanf:"driver"`
	// Path is the SQLite database file, required for the sqlite driver.
	Path string `koanf:"path"`
}

// WorkspaceConfig controls task workspace provisioning.
type WorkspaceConfig struct {
	// SourceRepo is the git URL or local path cloned per task.
	SourceRepo string `koanf:"source_repo"`
	// Root is the directory task clones are created under.
	Root string `koanf:"root"`
	// BaseBranch is the branch each task branch starts from.
	BaseBranch string `koanf:"base_branch"`
}

// LLMConfig configures the model collaborator.
type LLMConfig struct {
	// Provider is the model backend; openai is the only supported value.
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`

	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`

	// TokenBudget caps cumulative token usage across the run; zero means
	// unbounded.
	TokenBudget int `koanf:"token_budget"`
}

// OrchestratorConfig tunes the orchestration loop.
type OrchestratorConfig struct {
	TickInterval        Duration `koanf:"tick_interval"`
	EscalationThreshold int      `koanf:"escalation_threshold"`
}

// PheromoneConfig tunes the relevance engine maintenance.
type PheromoneConfig struct {
	// SweepInterval is how often expired pheromones are purged.
	SweepInterval Duration `koanf:"sweep_interval"`
}

// applyDefaults backfills zero values after file and environment loading.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		def := telemetry.NewDefaultConfig()
		enabled := cfg.Telemetry.Enabled
		cfg.Telemetry = *def
		cfg.Telemetry.Enabled = enabled
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == "" {
		cfg.Store.Path = "swarmd.db"
	}

	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "workspaces"
	}
	if cfg.Workspace.BaseBranch == "" {
		cfg.Workspace.BaseBranch = "main"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o"
	}

	if cfg.Orchestrator.TickInterval == 0 {
		cfg.Orchestrator.TickInterval = Duration(200 * time.Millisecond)
	}
	if cfg.Orchestrator.EscalationThreshold == 0 {
		cfg.Orchestrator.EscalationThreshold = 3
	}

	if cfg.Pheromone.SweepInterval == 0 {
		cfg.Pheromone.SweepInterval = Duration(time.Hour)
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}

	if c.Workspace.SourceRepo == "" {
		return errors.New("workspace.source_repo is required")
	}
	if c.Workspace.BaseBranch == "" {
		return errors.New("workspace.base_branch is required")
	}

	if c.LLM.Provider != "openai" {
		return fmt.Errorf("llm.provider must be openai, got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %g", c.LLM.Temperature)
	}
	if c.LLM.TokenBudget < 0 {
		return errors.New("llm.token_budget cannot be negative")
	}

	if c.Orchestrator.TickInterval.Duration() <= 0 {
		return errors.New("orchestrator.tick_interval must be positive")
	}
	if c.Orchestrator.EscalationThreshold < 1 {
		return errors.New("orchestrator.escalation_threshold must be at least 1")
	}

	if c.Pheromone.SweepInterval.Duration() <= 0 {
		return errors.New("pheromone.sweep_interval must be positive")
	}
	return nil
}
