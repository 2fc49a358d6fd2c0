package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/flemzord/agentchat/internal/core"
	"github.com/flemzord/agentchat/internal/cron"
)

// Validate checks the structural validity of a Config and reports every
// problem found at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateModules(cfg)...)
	errs = append(errs, validateSections(cfg)...)

	return errors.Join(errs...)
}

func validateModules(cfg *Config) []error {
	var errs []error

	if len(cfg.Modules) == 0 {
		return append(errs, errors.New("config: at least one module must be configured"))
	}
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	providers := ProviderIDs(cfg)
	if len(providers) == 0 {
		errs = append(errs, errors.New("config: at least one provider.* module must be configured"))
	}
	seen := make(map[string]struct{}, len(providers))
	for _, id := range cfg.Agent.Backends {
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("config: agent.backends lists %q twice", id))
		}
		seen[id] = struct{}{}
		if !isProvider(id) {
			errs = append(errs, fmt.Errorf("config: agent.backends: %q is not a provider module", id))
			continue
		}
		if _, ok := cfg.Modules[id]; !ok {
			errs = append(errs, fmt.Errorf("config: agent.backends references unconfigured module %q", id))
		}
	}
	return errs
}

func validateSections(cfg *Config) []error {
	var errs []error

	if err := cfg.Sessions.Config.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: sessions: %w", err))
	}
	if err := cron.ParseSchedule(cfg.Sessions.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("config: sessions.sweep_schedule %q: %w", cfg.Sessions.SweepSchedule, err))
	}
	if cfg.Agent.Timeout < 0 {
		errs = append(errs, fmt.Errorf("config: agent.timeout must be non-negative, got %s", cfg.Agent.Timeout))
	}
	if cfg.Agent.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("config: agent.max_history must be non-negative, got %d", cfg.Agent.MaxHistory))
	}
	if cfg.Stream.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("config: stream.chunk_size must be positive, got %d", cfg.Stream.ChunkSize))
	}
	if cfg.Stream.Pacing != nil && *cfg.Stream.Pacing < 0 {
		errs = append(errs, fmt.Errorf("config: stream.pacing must be non-negative, got %s", *cfg.Stream.Pacing))
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"", "text", "json"}, cfg.Log.Format) {
		errs = append(errs, fmt.Errorf("config: log.format must be text or json, got %q", cfg.Log.Format))
	}
	return errs
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}
