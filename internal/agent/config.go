package agent

import "time"

// Default values for Config.
const (
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultTimeout      = 5 * time.Minute
	DefaultMaxHistory   = 0 // 0 means unbounded.
)

// Config controls how agents talk to the backend.
type Config struct {
	// SystemPrompt is sent as the first message of every request.
	SystemPrompt string `yaml:"system_prompt"`

	// Timeout bounds a single backend call.
	Timeout time.Duration `yaml:"timeout"`

	// MaxHistory caps how many past messages an agent replays to the
	// backend. The oldest messages are dropped first. Zero means unbounded.
	MaxHistory int `yaml:"max_history"`
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxHistory < 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	return c
}
