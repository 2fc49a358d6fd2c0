package sqlite

import (
	"fmt"
	"time"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "transcripts.db"
)

// Config holds the SQLite transcript archive configuration.
type Config struct {
	// Path is the database file. Defaults to {DataDir}/transcripts.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a locked database.
	BusyTimeout int `yaml:"busy_timeout"`

	// Retention is how long exchanges are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`

	// PurgeSchedule is the cron expression of the retention job.
	PurgeSchedule string `yaml:"purge_schedule"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.Retention < 0 {
		return fmt.Errorf("sqlite: retention must be non-negative, got %s", c.Retention)
	}
	return nil
}
