// Package sqlite archives completed chat exchanges in a SQLite database
// using modernc.org/sqlite (pure Go, no CGO), with FTS5 search over
// messages and replies.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/agentchat/internal/core"
)

// ModuleID identifies the module in configuration.
const ModuleID = "transcript.sqlite"

// ServiceName is the AppContext service key of the *Archive.
const ServiceName = "transcript.archive"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module provides the SQLite transcript archive.
type Module struct {
	config  Config
	logger  *slog.Logger
	archive *Archive
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	archive, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.archive = archive
	ctx.RegisterService(ServiceName, archive)

	m.logger.Info("transcript archive opened",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"retention", m.config.Retention,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.archive.Ping(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.archive == nil {
		return nil
	}
	m.logger.Info("transcript archive closing")
	return m.archive.Close()
}

// Archive returns the opened archive.
func (m *Module) Archive() *Archive {
	return m.archive
}

// RetentionPolicy returns how long exchanges are kept and the purge
// schedule. A zero retention keeps everything.
func (m *Module) RetentionPolicy() (time.Duration, string) {
	return m.config.Retention, m.config.PurgeSchedule
}

// Config returns the effective configuration.
func (m *Module) Config() Config {
	return m.config
}
