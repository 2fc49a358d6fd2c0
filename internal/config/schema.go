// Package config loads the agentchat YAML configuration: environment
// variable expansion, search paths, the built-in default and structural
// validation.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/agentchat/internal/agent"
	"github.com/flemzord/agentchat/internal/provider"
	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/telemetry"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Only "1" is supported.
	Version string `yaml:"version"`

	// DataDir holds module data such as the transcript database.
	DataDir string `yaml:"data_dir"`

	Log       LogConfig        `yaml:"log"`
	Sessions  SessionsConfig   `yaml:"sessions"`
	Agent     AgentConfig      `yaml:"agent"`
	Stream    StreamConfig     `yaml:"stream"`
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig selects log verbosity and the audit trail destination.
type LogConfig struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string `yaml:"level"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format"`

	// AuditPath is the JSONL audit trail file. Empty disables auditing.
	AuditPath string `yaml:"audit_path"`
}

// SessionsConfig configures the session store and its cleanup job.
type SessionsConfig struct {
	session.Config `yaml:",inline"`

	// SweepSchedule is the cron expression of the idle session sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// AgentConfig configures agent bindings and the backends they use.
type AgentConfig struct {
	agent.Config `yaml:",inline"`

	// Backends lists provider module IDs in failover order. Empty means
	// every configured provider module, sorted by ID.
	Backends []string `yaml:"backends"`

	// Health tunes backend health tracking.
	Health provider.HealthConfig `yaml:"health"`
}

// StreamConfig configures reply chunking.
type StreamConfig struct {
	ChunkSize int `yaml:"chunk_size"`

	// Pacing is the pause between chunks. Unset means 10ms; "0s"
	// disables pacing.
	Pacing *time.Duration `yaml:"pacing"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultMaxSessions   = 100
	DefaultTimeout       = time.Hour
	DefaultSweepSchedule = "*/5 * * * *"
	DefaultChunkSize     = 10
	DefaultPacing        = 10 * time.Millisecond
)

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Sessions.MaxSessions == 0 {
		cfg.Sessions.MaxSessions = DefaultMaxSessions
	}
	if cfg.Sessions.Timeout == 0 {
		cfg.Sessions.Timeout = DefaultTimeout
	}
	if cfg.Sessions.Overflow == "" {
		cfg.Sessions.Overflow = session.OverflowEvictOldest
	}
	if cfg.Sessions.SweepSchedule == "" {
		cfg.Sessions.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.Stream.ChunkSize == 0 {
		cfg.Stream.ChunkSize = DefaultChunkSize
	}
	if cfg.Stream.Pacing == nil {
		p := DefaultPacing
		cfg.Stream.Pacing = &p
	}
}
