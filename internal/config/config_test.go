package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Workspace.SourceRepo = "https://example.com/repo.git"
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "swarmd.db", cfg.Store.Path)
	assert.Equal(t, "main", cfg.Workspace.BaseBranch)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 200*time.Millisecond, cfg.Orchestrator.TickInterval.Duration())
	assert.Equal(t, 3, cfg.Orchestrator.EscalationThreshold)
	assert.Equal(t, time.Hour, cfg.Pheromone.SweepInterval.Duration())
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "store.driver",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Store.Driver = "sqlite"
				c.Store.Path = ""
			},
			wantErr: "store.path",
		},
		{
			name:    "memory driver needs no path",
			mutate:  func(c *Config) { c.Store.Driver = "memory"; c.Store.Path = "" },
		},
		{
			name:    "missing source repo",
			mutate:  func(c *Config) { c.Workspace.SourceRepo = "" },
			wantErr: "workspace.source_repo",
		},
		{
			name:    "unknown llm provider",
			mutate:  func(c *Config) { c.LLM.Provider = "anthropic" },
			wantErr: "llm.provider",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.LLM.Temperature = 3.5 },
			wantErr: "llm.temperature",
		},
		{
			name:    "negative token budget",
			mutate:  func(c *Config) { c.LLM.TokenBudget = -1 },
			wantErr: "llm.token_budget",
		},
		{
			name:    "zero tick interval",
			mutate:  func(c *Config) { c.Orchestrator.TickInterval = 0 },
			wantErr: "orchestrator.tick_interval",
		},
		{
			name:    "zero escalation threshold",
			mutate:  func(c *Config) { c.Orchestrator.EscalationThreshold = 0 },
			wantErr: "orchestrator.escalation_threshold",
		},
		{
			name: "insecure remote telemetry",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = "collector.example.com:4317"
				c.Telemetry.Insecure = true
			},
			wantErr: "telemetry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "very-secret")

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
